package registry

import (
	"math"

	"github.com/google/uuid"
)

// Vec3 is a point or direction in scene space, in meters.
type Vec3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Rotation is an axis-angle orientation.
type Rotation struct {
	Angle float64 `json:"angle"` // radians
	Axis  Vec3    `json:"axis"`
}

// Material is the surface the viewer paints the mesh with.
type Material struct {
	Color    string `json:"color"`
	Metallic bool   `json:"metallic"`
}

// Gestures holds the direct manipulation flags of an entity.
type Gestures struct {
	CanDrag                        bool `json:"can_drag"`
	CanRotate                      bool `json:"can_rotate"`
	CanScale                       bool `json:"can_scale"`
	PivotOnDrag                    bool `json:"pivot_on_drag"`
	PreserveOrientationOnPivotDrag bool `json:"preserve_orientation_on_pivot_drag"`
}

// Enabled reports whether every gesture is on.
func (g Gestures) Enabled() bool {
	return g.CanDrag && g.CanRotate && g.CanScale && g.PivotOnDrag && g.PreserveOrientationOnPivotDrag
}

func gesturesWith(enabled bool) Gestures {
	return Gestures{
		CanDrag:                        enabled,
		CanRotate:                      enabled,
		CanScale:                       enabled,
		PivotOnDrag:                    enabled,
		PreserveOrientationOnPivotDrag: enabled,
	}
}

// Placement defaults for a freshly loaded mesh. The mesh is stood upright and
// placed above the origin, slightly in front of the viewer.
var (
	DefaultRotation = Rotation{Angle: -1.5 * math.Pi, Axis: Vec3{X: 1}}
	DefaultOffset   = Vec3{Y: 1.5, Z: -1.5}
	DefaultMaterial = Material{Color: "#FFFFFF", Metallic: false}
)

// Entity is the live scene object for one dataset's mesh.
type Entity struct {
	Name      string    `json:"name"`
	DatasetID uuid.UUID `json:"dataset_id"`
	MeshPath  string    `json:"mesh_path"`
	Rotation  Rotation  `json:"rotation"`
	Offset    Vec3      `json:"offset"`
	Material  Material  `json:"material"`
	Gestures  Gestures  `json:"gestures"`
}

// NewEntity creates an entity for meshPath with the default placement and all
// gestures enabled. The entity is named by the dataset id text so a scene can
// find it again.
func NewEntity(id uuid.UUID, meshPath string) *Entity {
	return &Entity{
		Name:      id.String(),
		DatasetID: id,
		MeshPath:  meshPath,
		Rotation:  DefaultRotation,
		Offset:    DefaultOffset,
		Material:  DefaultMaterial,
		Gestures:  gesturesWith(true),
	}
}
