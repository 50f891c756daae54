package reconstruct

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// shellFactory runs every command through /bin/sh with script, recording the
// requested name and args.
func shellFactory(script string, gotName *string, gotArgs *[]string) CommandFactoryFunc {
	return func(ctx context.Context, name string, args ...string) *exec.Cmd {
		*gotName = name
		*gotArgs = args
		shellArgs := append([]string{"-c", script, "sh"}, args...)
		return exec.CommandContext(ctx, "/bin/sh", shellArgs...)
	}
}

func TestExpand(t *testing.T) {
	got := expand(
		[]string{"recon", "--in={dir}", "{threshold}", "-o", "{output}", "{unknown}"},
		map[string]string{"dir": "/data/x", "threshold": "300", "output": "/tmp/o.obj"},
	)
	require.Equal(t, []string{"recon", "--in=/data/x", "300", "-o", "/tmp/o.obj", "{unknown}"}, got)
}

func TestExecReconstructor_ExpandsTemplate(t *testing.T) {
	work := t.TempDir()
	var name string
	var args []string

	r := NewExecReconstructor(
		[]string{"mcubes", "{dir}", "{threshold}", "{output}"}, work, time.Minute,
	).WithCommandFactory(shellFactory(`printf 'v 0 0 0\n' > "$3"`, &name, &args))

	out, err := r.ExtractIsosurface(context.Background(), "/data/set", "Abdomen", 312.5)
	require.NoError(t, err)

	require.Equal(t, "mcubes", name)
	require.Equal(t, "/data/set", args[0])
	require.Equal(t, "312.5", args[1])
	require.Equal(t, out, args[2])
	require.Equal(t, work, filepath.Dir(out))
	require.True(t, strings.HasPrefix(filepath.Base(out), "Abdomen-"))
	require.FileExists(t, out)
}

func TestExecReconstructor_CommandFailure(t *testing.T) {
	var name string
	var args []string
	r := NewExecReconstructor([]string{"mcubes", "{output}"}, t.TempDir(), 0).
		WithCommandFactory(shellFactory(`echo "bad threshold" >&2; exit 3`, &name, &args))

	_, err := r.ExtractIsosurface(context.Background(), "/d", "n", 300)
	require.Error(t, err)
	require.Contains(t, err.Error(), "mcubes")
	require.Contains(t, err.Error(), "bad threshold")
}

func TestExecReconstructor_EmptyOutputIsError(t *testing.T) {
	work := t.TempDir()
	var name string
	var args []string
	r := NewExecReconstructor([]string{"mcubes", "{output}"}, work, 0).
		WithCommandFactory(shellFactory(`: > "$1"`, &name, &args))

	_, err := r.ExtractIsosurface(context.Background(), "/d", "n", 300)
	require.Error(t, err)

	entries, err := os.ReadDir(work)
	require.NoError(t, err)
	require.Empty(t, entries)
}

func TestExecReconstructor_Timeout(t *testing.T) {
	var name string
	var args []string
	r := NewExecReconstructor([]string{"mcubes"}, t.TempDir(), 50*time.Millisecond).
		WithCommandFactory(shellFactory(`exec sleep 5`, &name, &args))

	start := time.Now()
	_, err := r.ExtractIsosurface(context.Background(), "/d", "n", 300)
	require.Error(t, err)
	require.Less(t, time.Since(start), 4*time.Second)
}

func TestExecConverter_Convert(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "in.obj")
	output := filepath.Join(dir, "out.usd")
	require.NoError(t, os.WriteFile(input, []byte("v 0 0 0\n"), 0o600))

	var name string
	var args []string
	c := NewExecConverter([]string{"usdcat", "{input}", "-o", "{output}"}, time.Minute).
		WithCommandFactory(shellFactory(`printf 'PXR-USDC' > "$3"`, &name, &args))

	got, err := c.Convert(context.Background(), input, output)
	require.NoError(t, err)
	require.Equal(t, output, got)
	require.Equal(t, "usdcat", name)
	require.Equal(t, []string{input, "-o", output}, args)
	require.True(t, IsValidMesh(output))
}

func TestExecTools_ThroughPipeline(t *testing.T) {
	root := t.TempDir()
	var name string
	var args []string

	r := NewExecReconstructor([]string{"mcubes", "{output}"}, filepath.Join(root, "work"), 0).
		WithCommandFactory(shellFactory(`printf 'v 0 0 0\n' > "$1"`, &name, &args))
	c := NewExecConverter([]string{"usdcat", "{input}", "{output}"}, 0).
		WithCommandFactory(shellFactory(`printf 'PXR-USDC\000' > "$2"`, &name, &args))

	p := NewPipeline(filepath.Join(root, "meshes"), r, c)
	ds := newDatasetNamed(root, "Chest")

	path, err := p.Reconstruct(context.Background(), ds, 300)
	require.NoError(t, err)
	require.True(t, IsValidMesh(path))

	work, err := os.ReadDir(filepath.Join(root, "work"))
	require.NoError(t, err)
	require.Empty(t, work)
}
