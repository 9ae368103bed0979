// Package pipeline orchestrates the full reconstruction flow: concurrent
// file ingestion, per-modality grouping, geometry resolution and structure
// rasterization. A batch never fails wholesale; unusable files and groups
// are dropped with logged reasons and the rest proceeds.
package pipeline

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"github.com/morfeuslab/dicomvol/internal/config"
	"github.com/morfeuslab/dicomvol/internal/contour"
	"github.com/morfeuslab/dicomvol/internal/ingest"
	"github.com/morfeuslab/dicomvol/internal/rtstruct"
	"github.com/morfeuslab/dicomvol/internal/volume"
)

// StructureMask is one rasterized structure overlaid on a volume.
type StructureMask struct {
	Name  string
	Color [3]uint8
	Mask  *contour.Mask
}

// VolumeResult pairs a reconstructed volume with the masks of every
// structure set referencing it.
type VolumeResult struct {
	Volume *volume.Volume
	Masks  []StructureMask
}

// Result is the outcome of one pipeline run.
type Result struct {
	Volumes []*VolumeResult
	Dropped []ingest.Drop
}

// Pipeline runs reconstruction batches under one configuration.
type Pipeline struct {
	cfg *config.Config
	log zerolog.Logger

	// Progress, when set, is called after each ingested file.
	Progress func(path string)
}

// New returns a pipeline using the given configuration and logger.
func New(cfg *config.Config, log zerolog.Logger) *Pipeline {
	return &Pipeline{cfg: cfg, log: log}
}

// Run ingests the given files and assembles volumes and masks from them.
func (p *Pipeline) Run(ctx context.Context, paths []string) (*Result, error) {
	ingested := ingest.ReadFiles(ctx, paths, ingest.Options{
		Workers:     p.cfg.Ingest.Workers,
		FileTimeout: p.cfg.FileTimeout(),
		Progress:    p.Progress,
	}, p.log)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return p.Assemble(ingested), nil
}

// Assemble turns an ingestion result into reconstructed volumes with their
// structure masks. Records are partitioned by modality and grouped into
// candidate volumes; each group resolves independently, concurrently when
// configured, into a pre-sized slot so output order is stable regardless of
// scheduling. Groups that fail to resolve are logged and skipped.
func (p *Pipeline) Assemble(in *ingest.Result) *Result {
	res := &Result{Dropped: in.Dropped}

	var groups [][]volume.SliceRecord
	for _, mod := range volume.AllModalities() {
		if !p.cfg.ModalityAllowed(mod) {
			continue
		}
		var records []volume.SliceRecord
		for _, r := range in.Records {
			if r.Modality == mod {
				records = append(records, r)
			}
		}
		groups = append(groups, volume.GroupSlices(records)...)
	}

	opts := volume.ResolveOptions{
		RepairSkippedSlices: p.cfg.Reconstruct.RepairSkippedSlices,
	}
	slots := make([]*VolumeResult, len(groups))
	resolveOne := func(i int) {
		v, err := volume.Resolve(groups[i], opts)
		if err != nil {
			p.log.Warn().Err(err).Msg("skipping unresolvable slice group")
			return
		}
		slots[i] = &VolumeResult{Volume: v}
	}

	if p.cfg.Reconstruct.Parallel {
		var wg sync.WaitGroup
		for i := range groups {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				resolveOne(i)
			}(i)
		}
		wg.Wait()
	} else {
		for i := range groups {
			resolveOne(i)
		}
	}

	for _, slot := range slots {
		if slot == nil {
			continue
		}
		p.attachMasks(slot, in.StructureSets)
		res.Volumes = append(res.Volumes, slot)
	}
	return res
}

// attachMasks rasterizes every structure of every set referencing the
// volume. A set matches on the referenced series UID, or on the frame of
// reference when the set does not name a series.
func (p *Pipeline) attachMasks(vr *VolumeResult, sets []*rtstruct.StructureSet) {
	for _, set := range sets {
		if !references(set, vr.Volume) {
			continue
		}
		for i := range set.Structures {
			cs := &set.Structures[i]
			mask := contour.Rasterize(vr.Volume, cs)
			if mask.Empty() {
				p.log.Debug().
					Str("series", vr.Volume.SeriesUID).
					Str("structure", cs.Name).
					Msg("structure has no geometry on this volume")
			}
			vr.Masks = append(vr.Masks, StructureMask{
				Name:  cs.Name,
				Color: cs.Color,
				Mask:  mask,
			})
		}
	}
}

func references(set *rtstruct.StructureSet, v *volume.Volume) bool {
	if set.SeriesUID != "" {
		return set.SeriesUID == v.SeriesUID
	}
	return set.FrameOfRefUID != "" && set.FrameOfRefUID == v.FrameOfRefUID
}
