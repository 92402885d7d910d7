// Package chunker implements chunked note extraction: it partitions
// a note set into chunks, dispatches chunks in bounded-concurrency
// waves, and reports cumulative progress as each chunk completes.
package chunker

import (
	"context"
	"log"
	"runtime"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/clinotect/noteengine/internal/extraction/extractor"
	"github.com/clinotect/noteengine/internal/extraction/index"
	"github.com/clinotect/noteengine/internal/types"
)

// maxConcurrency caps boosted parallelism regardless of the multiplier.
const maxConcurrency = 16

// Options tunes chunk dispatch.
type Options struct {
	TargetChunkSize   int
	Concurrency       int
	ConcurrencyBoost  int
	Boost             bool
	ChunkTimeout      time.Duration
	JobTimeout        time.Duration
	MemorySoftLimitMB uint64
}

// DefaultOptions derives the base concurrency from the CPU count,
// leaving one core for the rest of the process.
func DefaultOptions() Options {
	base := min(4, max(1, runtime.NumCPU()-1))
	return Options{
		TargetChunkSize:   1000,
		Concurrency:       base,
		ConcurrencyBoost:  2,
		ChunkTimeout:      2 * time.Minute,
		JobTimeout:        2 * time.Hour,
		MemorySoftLimitMB: 8192,
	}
}

// effectiveConcurrency applies boost mode: the base worker count times
// the boost multiplier, never exceeding maxConcurrency.
func (o Options) effectiveConcurrency() int {
	c := o.Concurrency
	if c <= 0 {
		c = 1
	}
	if o.Boost {
		boost := o.ConcurrencyBoost
		if boost < 1 {
			boost = 2
		}
		c = min(maxConcurrency, c*boost)
	}
	return c
}

// Progress is the cumulative snapshot passed to onProgress after every
// chunk completion. ChunkTimeouts counts chunks skipped because they
// exceeded the chunk timeout; TimedOut reports the whole job deadline
// expiring.
type Progress struct {
	ProcessedNotes int
	TotalNotes     int
	MentionsSoFar  int
	ChunkTimeouts  int
	TimedOut       bool
}

// chunkOutcome captures one chunk's result or its failure mode.
type chunkOutcome struct {
	mentions []*types.Mention
	timedOut bool
}

// Run partitions notes into chunks and extracts them in bounded
// concurrent waves. Output preserves chunk-dispatch order; within a
// chunk, note-iteration order; per note, candidate-dispatch order.
func Run(ctx context.Context, notes []*types.Note, idx *index.Index, tenantID string, opts Options, onProgress func(Progress)) ([]*types.Mention, error) {
	if len(notes) == 0 {
		return nil, nil
	}

	jobCtx := ctx
	var cancelJob context.CancelFunc
	if opts.JobTimeout > 0 {
		jobCtx, cancelJob = context.WithTimeout(ctx, opts.JobTimeout)
		defer cancelJob()
	}

	if len(notes) < 10 {
		return runInline(jobCtx, notes, idx, tenantID, onProgress)
	}

	chunkSize := opts.TargetChunkSize
	if chunkSize <= 0 {
		chunkSize = 1000
	}
	chunks := partition(notes, chunkSize)

	concurrency := opts.effectiveConcurrency()

	outcomes := make([]chunkOutcome, len(chunks))
	var processed, mentionsSoFar, chunkTimeouts int

	waveStart := 0
	for waveStart < len(chunks) {
		select {
		case <-jobCtx.Done():
			return flatten(outcomes), nil
		default:
		}

		waveConcurrency := concurrency
		currentChunkSize := chunkSize
		if memoryUnderPressure(opts.MemorySoftLimitMB) {
			waveConcurrency = 1
			runtime.GC()
			currentChunkSize = max(100, currentChunkSize/2)
			// re-partition the remaining notes at the smaller chunk size
			remaining := flattenChunks(chunks[waveStart:])
			rechunked := partition(remaining, currentChunkSize)
			chunks = append(chunks[:waveStart], rechunked...)
			outcomes = append(outcomes[:waveStart], make([]chunkOutcome, len(rechunked))...)
		}

		waveEnd := min(waveStart+waveConcurrency, len(chunks))
		if err := dispatchWave(jobCtx, chunks[waveStart:waveEnd], waveStart, idx, tenantID, opts.ChunkTimeout, outcomes); err != nil {
			return flatten(outcomes), err
		}

		for i := waveStart; i < waveEnd; i++ {
			processed += len(chunks[i])
			mentionsSoFar += len(outcomes[i].mentions)
			if outcomes[i].timedOut {
				chunkTimeouts++
				log.Printf("chunker: chunk %d timed out, skipped %d notes", i+1, len(chunks[i]))
			}
			if onProgress != nil {
				onProgress(Progress{
					ProcessedNotes: processed,
					TotalNotes:     len(notes),
					MentionsSoFar:  mentionsSoFar,
					ChunkTimeouts:  chunkTimeouts,
					TimedOut:       jobCtx.Err() != nil,
				})
			}
		}
		waveStart = waveEnd
	}

	return flatten(outcomes), nil
}

func runInline(ctx context.Context, notes []*types.Note, idx *index.Index, tenantID string, onProgress func(Progress)) ([]*types.Mention, error) {
	var mentions []*types.Mention
	for i, n := range notes {
		m, err := extractor.Extract(n, idx, tenantID)
		if err != nil {
			return mentions, err
		}
		mentions = append(mentions, m...)
		if onProgress != nil {
			onProgress(Progress{ProcessedNotes: i + 1, TotalNotes: len(notes), MentionsSoFar: len(mentions)})
		}
		if ctx.Err() != nil {
			break
		}
	}
	return mentions, nil
}

// dispatchWave runs the given chunks concurrently, each under its own
// chunk timeout. A chunk that times out contributes an empty result
// rather than failing the wave: the caller already sliced the wave to
// the desired concurrency.
func dispatchWave(ctx context.Context, chunks [][]*types.Note, startIndex int, idx *index.Index, tenantID string, chunkTimeout time.Duration, outcomes []chunkOutcome) error {
	g, gctx := errgroup.WithContext(ctx)
	for i, chunk := range chunks {
		i, chunk := i, chunk
		g.Go(func() error {
			outcomes[startIndex+i] = runChunk(gctx, chunk, idx, tenantID, chunkTimeout)
			return nil
		})
	}
	return g.Wait()
}

func runChunk(ctx context.Context, notes []*types.Note, idx *index.Index, tenantID string, timeout time.Duration) chunkOutcome {
	chunkCtx := ctx
	var cancel context.CancelFunc
	if timeout != 0 {
		chunkCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	if chunkCtx.Err() != nil {
		return chunkOutcome{timedOut: true}
	}

	done := make(chan []*types.Mention, 1)
	go func() {
		var mentions []*types.Mention
		for _, n := range notes {
			m, err := extractor.Extract(n, idx, tenantID)
			if err != nil {
				continue
			}
			mentions = append(mentions, m...)
		}
		done <- mentions
	}()

	select {
	case mentions := <-done:
		return chunkOutcome{mentions: mentions}
	case <-chunkCtx.Done():
		return chunkOutcome{timedOut: true}
	}
}

func partition(notes []*types.Note, size int) [][]*types.Note {
	var chunks [][]*types.Note
	for start := 0; start < len(notes); start += size {
		end := min(start+size, len(notes))
		chunks = append(chunks, notes[start:end])
	}
	return chunks
}

func flattenChunks(chunks [][]*types.Note) []*types.Note {
	var notes []*types.Note
	for _, c := range chunks {
		notes = append(notes, c...)
	}
	return notes
}

func flatten(outcomes []chunkOutcome) []*types.Mention {
	var mentions []*types.Mention
	for _, o := range outcomes {
		mentions = append(mentions, o.mentions...)
	}
	return mentions
}

// memoryUnderPressure reports whether resident memory is above the
// configured soft limit. A zero limit disables the check.
func memoryUnderPressure(limitMB uint64) bool {
	if limitMB == 0 {
		return false
	}
	var stats runtime.MemStats
	runtime.ReadMemStats(&stats)
	return stats.Sys/1024/1024 > limitMB
}
