// Package batch renders mesh previews to WebP with a worker pool.
package batch

import (
	"context"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/HugoSmits86/nativewebp"

	"xmesh-tool/internal/logger"
	"xmesh-tool/internal/mesh"
	"xmesh-tool/internal/postprocess"
	"xmesh-tool/internal/raster"
	"xmesh-tool/internal/texture"
)

// Config holds the shared resources of a preview run.
type Config struct {
	OutputDir string
	// Textures resolves texture names; nil renders everything untextured.
	Textures texture.Resolver
	Render   raster.Options
	// Fill is the canvas share of the framed mesh; zero uses
	// postprocess.DefaultFill.
	Fill    float64
	Workers int
	// Progress is how often throughput is logged; zero disables it.
	Progress time.Duration
	Log      logger.Logger
}

// Job is one mesh to render.
type Job struct {
	Mesh *mesh.Mesh
	// Textures are candidate texture names; the first that resolves is used.
	Textures []string
}

// Result is the outcome of one job.
type Result struct {
	Hash      uint64
	LOD       uint16
	Image     string // relative to OutputDir
	Texture   string
	Vertices  int
	Triangles int
	Success   bool
	Error     string
}

// ImageName is the file a mesh preview is written to.
func ImageName(hash uint64) string {
	return fmt.Sprintf("%X.webp", hash)
}

// Run renders every job. Results are in job order. Jobs not started when
// ctx is cancelled are reported as failed with the context error.
func Run(ctx context.Context, cfg Config, jobs []Job) []Result {
	log := logger.Or(cfg.Log)
	total := len(jobs)
	results := make([]Result, total)
	workers := max(1, cfg.Workers)
	var processed atomic.Int64

	start := time.Now()
	done := make(chan struct{})
	if cfg.Progress > 0 {
		go func() {
			ticker := time.NewTicker(cfg.Progress)
			defer ticker.Stop()
			for {
				select {
				case <-done:
					return
				case <-ticker.C:
					if p := processed.Load(); p > 0 {
						rate := float64(p) / time.Since(start).Seconds()
						log.Info("rendering", "done", p, "total", total, "per_sec", fmt.Sprintf("%.1f", rate))
					}
				}
			}
		}()
	}

	jobChan := make(chan int, workers*2)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range jobChan {
				if err := ctx.Err(); err != nil {
					results[idx] = failed(jobs[idx].Mesh, err.Error())
				} else {
					results[idx] = render(cfg, jobs[idx])
				}
				processed.Add(1)
			}
		}()
	}

	for i := range jobs {
		jobChan <- i
	}
	close(jobChan)

	wg.Wait()
	close(done)

	ok := 0
	for _, r := range results {
		if r.Success {
			ok++
		}
	}
	log.Info("previews rendered", "ok", ok, "failed", total-ok, "elapsed", time.Since(start).Round(time.Millisecond))
	return results
}

func failed(m *mesh.Mesh, msg string) Result {
	r := Result{Error: msg}
	if m != nil {
		r.Hash, r.LOD = m.Hash, m.LOD
		r.Vertices, r.Triangles = m.VertexCount(), m.TriangleCount()
	}
	return r
}

func render(cfg Config, job Job) Result {
	m := job.Mesh
	if m == nil || m.TriangleCount() == 0 {
		return failed(m, "mesh has no triangles")
	}
	res := failed(m, "")

	var tex *image.NRGBA
	if cfg.Textures != nil {
		for _, name := range job.Textures {
			if tex = cfg.Textures.Resolve(name); tex != nil {
				res.Texture = name
				break
			}
		}
	}

	opts := cfg.Render
	if opts.Size <= 0 {
		opts = raster.DefaultOptions()
	}
	img := raster.RenderMesh(m, tex, opts)
	if opts.Supersample > 1 {
		img = postprocess.Downsample(img, opts.Size)
	}
	img = postprocess.Frame(img, opts.Size, cfg.Fill)

	res.Image = ImageName(m.Hash)
	outPath := filepath.Join(cfg.OutputDir, res.Image)
	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		res.Error = err.Error()
		return res
	}
	f, err := os.Create(outPath)
	if err != nil {
		res.Error = err.Error()
		return res
	}
	defer f.Close()

	if err := nativewebp.Encode(f, img, nil); err != nil {
		res.Error = fmt.Sprintf("webp encode: %v", err)
		return res
	}
	res.Success = true
	return res
}
