package pipeline

import (
	"context"
	"fmt"

	"github.com/dvloznov/finance-intake/internal/domain"
	"github.com/dvloznov/finance-intake/internal/extract"
	"github.com/dvloznov/finance-intake/internal/structuring"
)

// PipelineStep represents a single step in the per-file pipeline.
type PipelineStep interface {
	Execute(ctx context.Context, state *PipelineState) error
}

// PipelineState holds the shared state across the steps for one file.
type PipelineState struct {
	File      domain.UploadedFile
	Options   domain.UploadOptions
	Data      []byte
	Raw       *extract.RawExtraction
	Statement *domain.ExtractedStatement
}

// Step 1: ReadScratchStep loads the staged upload into memory.
type ReadScratchStep struct {
	Storage ScratchStorage
}

func (s *ReadScratchStep) Execute(ctx context.Context, state *PipelineState) error {
	data, err := s.Storage.ReadFile(state.File.Path)
	if err != nil {
		return fmt.Errorf("read scratch file: %w", err)
	}
	state.Data = data
	return nil
}

// Step 2: ExtractStep converts the bytes into a raw extraction.
type ExtractStep struct {
	Extractor extract.Extractor
}

func (s *ExtractStep) Execute(ctx context.Context, state *PipelineState) error {
	raw, err := s.Extractor.Extract(ctx, state.Data, state.File.MIMEType, state.File.Filename)
	if err != nil {
		return err
	}
	state.Raw = raw
	return nil
}

// Step 3: StructureStep asks the model to classify and structure the extraction.
type StructureStep struct {
	Structurer structuring.Structurer
}

func (s *StructureStep) Execute(ctx context.Context, state *PipelineState) error {
	stmt, err := s.Structurer.Structure(ctx, state.Raw, structuring.Request{
		Mode:    structuring.ModeStructure,
		Context: state.Options,
	})
	if err != nil {
		return err
	}
	if stmt == nil {
		return fmt.Errorf("structure %s: %w", state.File.Filename, domain.ErrEmptyModelResponse)
	}
	state.Statement = stmt
	return nil
}

// Step 4: StampStep records the provenance of the statement.
type StampStep struct{}

func (s *StampStep) Execute(ctx context.Context, state *PipelineState) error {
	state.Statement.SourceFilename = state.File.Filename
	state.Statement.Size = state.File.Size
	state.Statement.MIMEType = state.File.MIMEType
	if state.Statement.Items == nil {
		state.Statement.Items = domain.LineItems{}
	}
	return nil
}

// Pipeline executes a sequence of steps in order.
type Pipeline struct {
	steps []PipelineStep
}

// NewPipeline creates a new pipeline with the given steps.
func NewPipeline(steps ...PipelineStep) *Pipeline {
	return &Pipeline{steps: steps}
}

// Execute runs all steps in the pipeline sequentially.
func (p *Pipeline) Execute(ctx context.Context, state *PipelineState) error {
	for i, step := range p.steps {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := step.Execute(ctx, state); err != nil {
			return fmt.Errorf("pipeline step %d failed: %w", i+1, err)
		}
	}
	return nil
}

// NewFileProcessingPipeline creates the standard 4-step pipeline for one uploaded file.
func NewFileProcessingPipeline(storage ScratchStorage, extractor extract.Extractor, structurer structuring.Structurer) *Pipeline {
	return NewPipeline(
		&ReadScratchStep{Storage: storage},
		&ExtractStep{Extractor: extractor},
		&StructureStep{Structurer: structurer},
		&StampStep{},
	)
}
