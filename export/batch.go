package export

import (
	"context"
	"log"

	"golang.org/x/sync/errgroup"
)

// Job is one export of a batch. No rigs exports the mesh without skin, one
// rig binds it, more rigs are unioned first.
type Job struct {
	Mesh    Source
	Rigs    []Source
	Out     string
	Options Options
}

type Result struct {
	Job      *Job
	Exported bool
	Err      error
}

func (e *Exporter) run(job *Job) (bool, error) {
	switch len(job.Rigs) {
	case 0:
		return e.ExportMesh(job.Mesh, job.Out, job.Options)
	case 1:
		return e.ExportMeshWithRig(job.Mesh, job.Rigs[0], job.Out, job.Options)
	default:
		return e.ExportMultiMeshWithRig([]Source{job.Mesh}, job.Rigs, job.Out, job.Options)
	}
}

// Batch runs jobs on up to workers goroutines. A failing job does not stop the
// others. Once ctx is done jobs that have not started are skipped with ctx.Err();
// running jobs finish. progress, if set, is called once per job and may be
// called concurrently.
func (e *Exporter) Batch(ctx context.Context, jobs []Job, workers int, progress func(Result)) []Result {
	if workers < 1 {
		workers = 1
	}
	results := make([]Result, len(jobs))

	var g errgroup.Group
	g.SetLimit(workers)
	for i := range jobs {
		i := i
		results[i].Job = &jobs[i]
		if err := ctx.Err(); err != nil {
			results[i].Err = err
			closeSources(append([]Source{jobs[i].Mesh}, jobs[i].Rigs...)...)
			if progress != nil {
				progress(results[i])
			}
			continue
		}
		g.Go(func() error {
			r := &results[i]
			if err := ctx.Err(); err != nil {
				r.Err = err
				closeSources(append([]Source{r.Job.Mesh}, r.Job.Rigs...)...)
			} else {
				r.Exported, r.Err = e.run(r.Job)
			}
			if r.Err != nil {
				log.Printf("[batch] %s: %v", r.Job.Mesh.Name, r.Err)
			}
			if progress != nil {
				progress(*r)
			}
			return nil
		})
	}
	g.Wait()
	return results
}
