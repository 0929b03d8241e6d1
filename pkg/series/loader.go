package series

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"log"
	"runtime"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/errgroup"

	"dicomseries/internal/models"
	"dicomseries/pkg/source"
)

const tracerName = "dicomseries/pkg/series"

// Source enumerates the candidate files at a location. The returned cleanup
// function releases anything the source created (extracted archives) and
// is always safe to call.
type Source interface {
	Open(ctx context.Context, location string) (files []string, cleanup func() error, err error)
}

// Params holds the loader configuration
type Params struct {
	// Workers bounds the number of files decoded and slices normalized at
	// once. Zero or less means runtime.NumCPU().
	Workers int

	// Tolerances controls consistency checks. The zero value means
	// DefaultTolerances().
	Tolerances Tolerances

	// Source enumerates files. Nil means source.NewResolver().
	Source Source

	// Logger receives progress lines. Nil discards them.
	Logger *log.Logger
}

// Loader assembles slice series into volumes using the process decoder
// installed by Init. A Loader holds no state between calls and may be used
// concurrently.
type Loader struct {
	params Params
	logger *log.Logger
}

// NewLoader creates a loader, filling unset parameters with defaults
func NewLoader(params *Params) *Loader {
	p := Params{}
	if params != nil {
		p = *params
	}
	if p.Workers <= 0 {
		p.Workers = runtime.NumCPU()
	}
	if p.Tolerances == (Tolerances{}) {
		p.Tolerances = DefaultTolerances()
	}
	if p.Source == nil {
		p.Source = source.NewResolver()
	}
	logger := p.Logger
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Loader{params: p, logger: logger}
}

// LoadSeries loads the series at location with default parameters
func LoadSeries(ctx context.Context, location string) (models.Volume, error) {
	return NewLoader(nil).Load(ctx, location)
}

// Load runs the full pipeline on the files at location: decode, validate,
// order, normalize and assemble. It returns either a complete volume owned
// by the caller or exactly one *Error. ctx is checked between stages and
// before each file or slice is started.
func (l *Loader) Load(ctx context.Context, location string) (vol models.Volume, err error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "series.Load")
	span.SetAttributes(attribute.String("series.location", location))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, Classify(err).String())
		}
		span.End()
	}()

	dec, err := currentDecoder()
	if err != nil {
		return models.Volume{}, err
	}

	files, cleanup, err := l.params.Source.Open(ctx, location)
	if cleanup != nil {
		defer func() {
			if cerr := cleanup(); cerr != nil {
				l.logger.Printf("Warning: failed to clean up %s: %v", location, cerr)
			}
		}()
	}
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return models.Volume{}, newError(KindNoFiles, "open", err, "%s", location)
		}
		return models.Volume{}, classify(KindNative, "open", err)
	}
	if len(files) == 0 {
		return models.Volume{}, newError(KindNoFiles, "open", nil, "no files in %s", location)
	}
	span.SetAttributes(attribute.Int("series.files", len(files)))

	// Step 1: decode every file in parallel
	l.logger.Printf("Step 1: Decoding %d files with %d workers...", len(files), l.params.Workers)
	records, err := l.decodeAll(ctx, dec, files)
	if err != nil {
		return models.Volume{}, err
	}
	if len(records) == 0 {
		return models.Volume{}, newError(KindNoFiles, "decode", nil, "no slice files in %s", location)
	}
	l.logger.Printf("Decoded %d slices (%d files skipped)", len(records), len(files)-len(records))

	// Step 2: check the slices form one consistent series
	l.logger.Println("Step 2: Validating series consistency...")
	if err := checkCanceled(ctx, "validate"); err != nil {
		return models.Volume{}, err
	}
	if err := traced(ctx, "series.validate", func() error {
		_, err := Validate(records, l.params.Tolerances)
		return err
	}); err != nil {
		return models.Volume{}, err
	}

	// Step 3: order along the dominant axis
	l.logger.Println("Step 3: Ordering slices...")
	if err := checkCanceled(ctx, "order"); err != nil {
		return models.Volume{}, err
	}
	var (
		ordered []models.SliceRecord
		axis    models.Axis
	)
	if err := traced(ctx, "series.order", func() error {
		var err error
		ordered, axis, err = Order(records, l.params.Tolerances)
		return err
	}); err != nil {
		return models.Volume{}, err
	}
	l.logger.Printf("Ordered %d slices along %s", len(ordered), axis)

	// Step 4: normalize samples in parallel
	l.logger.Println("Step 4: Normalizing pixel samples...")
	if err := checkCanceled(ctx, "normalize"); err != nil {
		return models.Volume{}, err
	}
	samples, err := l.normalizeAll(ctx, ordered)
	if err != nil {
		return models.Volume{}, err
	}

	// Step 5: assemble the voxel buffer
	l.logger.Println("Step 5: Assembling volume...")
	if err := checkCanceled(ctx, "assemble"); err != nil {
		return models.Volume{}, err
	}
	if err := traced(ctx, "series.assemble", func() error {
		var err error
		vol, err = Assemble(ordered, samples, axis, l.params.Tolerances)
		return err
	}); err != nil {
		return models.Volume{}, err
	}

	l.logger.Printf("Assembled %dx%dx%d volume, spacing %.3fx%.3fx%.3f mm",
		vol.Width, vol.Height, vol.Depth, vol.SpacingX, vol.SpacingY, vol.SpacingZ)
	return vol, nil
}

// decodeAll decodes files on a bounded pool. Results keep the file order;
// files the decoder rejects as ErrNotSlice are dropped. The first failure
// cancels the remaining work.
func (l *Loader) decodeAll(ctx context.Context, dec Decoder, files []string) ([]models.SliceRecord, error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "series.decode")
	defer span.End()

	type decoded struct {
		record models.SliceRecord
		ok     bool
	}
	results := make([]decoded, len(files))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(l.params.Workers)
	for i, path := range files {
		i, path := i, path
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			rec, err := dec.Decode(gctx, path)
			if errors.Is(err, ErrNotSlice) {
				l.logger.Printf("Skipping %s: %v", path, err)
				return nil
			}
			if err != nil {
				return classify(KindNative, "decode", err)
			}
			if rec.Path == "" {
				rec.Path = path
			}
			results[i] = decoded{record: rec, ok: true}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		span.RecordError(err)
		return nil, firstError(ctx, "decode", err)
	}

	records := make([]models.SliceRecord, 0, len(files))
	for _, r := range results {
		if r.ok {
			records = append(records, r.record)
		}
	}
	return records, nil
}

// normalizeAll converts every ordered slice to canonical samples in parallel
func (l *Loader) normalizeAll(ctx context.Context, ordered []models.SliceRecord) ([][]float64, error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "series.normalize")
	defer span.End()

	samples := make([][]float64, len(ordered))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(l.params.Workers)
	for i, s := range ordered {
		i, s := i, s
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			out, err := NormalizeSlice(s)
			if err != nil {
				return err
			}
			samples[i] = out
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		span.RecordError(err)
		return nil, firstError(ctx, "normalize", err)
	}
	return samples, nil
}

// traced runs fn inside a child span named name
func traced(ctx context.Context, name string, fn func() error) error {
	_, span := otel.Tracer(tracerName).Start(ctx, name)
	defer span.End()

	if err := fn(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	return nil
}

// firstError prefers the caller's cancellation over errors caused by it
func firstError(ctx context.Context, op string, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return &Error{Kind: KindNative, Op: op, Msg: "canceled", Err: ctxErr}
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return &Error{Kind: KindNative, Op: op, Msg: "canceled", Err: err}
	}
	return classify(KindNative, op, err)
}

func checkCanceled(ctx context.Context, op string) error {
	if err := ctx.Err(); err != nil {
		return &Error{Kind: KindNative, Op: op, Msg: "canceled", Err: err}
	}
	return nil
}
