package export

import (
	"path/filepath"
	"strings"
	"sync/atomic"

	"github.com/red4tools/meshexport/status"
	"github.com/red4tools/meshexport/vfs"
)

// OutputName is the exported file name of a container.
func OutputName(name string, binary bool) string {
	base := strings.TrimSuffix(filepath.Base(name), filepath.Ext(name))
	if binary {
		return base + ".glb"
	}
	return base + ".gltf"
}

func openSource(d vfs.Directory, name string) (Source, error) {
	path, stream, err := vfs.OpenFile(d, name)
	if err != nil {
		return Source{}, err
	}
	return Source{Name: path, Stream: stream}, nil
}

// JobsFromDirectory creates one job per mesh of d, each bound to the named
// rigs of d. Every job gets its own streams. On error already opened streams
// are closed.
func JobsFromDirectory(d vfs.Directory, out string, rigs []string, o Options) ([]Job, error) {
	meshes, err := vfs.ListByExt(d, vfs.MeshExt)
	if err != nil {
		return nil, err
	}

	jobs := make([]Job, 0, len(meshes))
	fail := func(err error, opened ...Source) ([]Job, error) {
		closeSources(opened...)
		for _, j := range jobs {
			closeSources(append([]Source{j.Mesh}, j.Rigs...)...)
		}
		return nil, err
	}

	for _, name := range meshes {
		src, err := openSource(d, name)
		if err != nil {
			return fail(err)
		}
		job := Job{
			Mesh:    src,
			Out:     filepath.Join(out, OutputName(name, o.Binary)),
			Options: o,
		}
		for _, rigName := range rigs {
			rigSrc, err := openSource(d, rigName)
			if err != nil {
				return fail(err, append([]Source{job.Mesh}, job.Rigs...)...)
			}
			job.Rigs = append(job.Rigs, rigSrc)
		}
		jobs = append(jobs, job)
	}
	return jobs, nil
}

// StatusProgress publishes batch progress to status.Default.
func StatusProgress(total int) func(Result) {
	var done int32
	return func(r Result) {
		n := atomic.AddInt32(&done, 1)
		progress := float32(n) / float32(total)
		name := filepath.Base(r.Job.Mesh.Name)
		switch {
		case r.Err != nil:
			status.Error("%s: %v", name, r.Err)
		case !r.Exported:
			status.Progress(progress, "%s: nothing to export", name)
		default:
			status.Progress(progress, "%s exported", name)
		}
	}
}
