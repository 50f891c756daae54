package tracing

// Span attribute keys.
const (
	AttrCommandID     = "command.id"
	AttrCommandType   = "command.type"
	AttrCommandSource = "command.source"

	AttrDatasetID   = "dataset.id"
	AttrDatasetName = "dataset.name"
	AttrSliceName   = "slice.name"
	AttrThreshold   = "reconstruct.threshold"
	AttrMeshPath    = "reconstruct.mesh_path"
)

// Span name prefixes.
const (
	SpanPrefixCommand = "owner.command."
	SpanPrefixService = "service."
)
