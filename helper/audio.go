package helper

import (
	"context"
	"encoding/json"

	"askocr/cancel"
)

// ScriptName is the audio backend helper shipped in python_backend/.
const ScriptName = "audio_ai_helper.py"

type ModelStatus struct {
	WhisperModels        []string `json:"whisper_models"`
	DiarizationInstalled bool     `json:"diarization_installed"`
	DenoiserInstalled    bool     `json:"denoiser_installed"`
}

type DownloadResult struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

type Segment struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

type TranscriptionResult struct {
	Success    bool      `json:"success"`
	Text       string    `json:"text,omitempty"`
	Segments   []Segment `json:"segments,omitempty"`
	Language   string    `json:"language,omitempty"`
	OutputPath string    `json:"output_path,omitempty"`
	Error      string    `json:"error,omitempty"`
}

type SpeakerSegment struct {
	Start   float64 `json:"start"`
	End     float64 `json:"end"`
	Text    string  `json:"text"`
	Speaker string  `json:"speaker"`
}

type DiarizationResult struct {
	Success      bool             `json:"success"`
	FullText     string           `json:"full_text,omitempty"`
	Segments     []SpeakerSegment `json:"segments,omitempty"`
	Speakers     []string         `json:"speakers,omitempty"`
	NumSpeakers  int              `json:"num_speakers,omitempty"`
	SpeakersData json.RawMessage  `json:"speakers_data,omitempty"`
	Error        string           `json:"error,omitempty"`
}

// FileResult covers the export and denoise actions, which only report where
// they wrote their output.
type FileResult struct {
	Success    bool   `json:"success"`
	OutputPath string `json:"output_path,omitempty"`
	Error      string `json:"error,omitempty"`
}

type TranscribeOptions struct {
	Model    string `json:"model"`
	Format   string `json:"format"`
	Language string `json:"language,omitempty"`
}

type DiarizeOptions struct {
	Model       string `json:"model"`
	Language    string `json:"language,omitempty"`
	NumSpeakers int    `json:"num_speakers,omitempty"`
	MaxSpeakers int    `json:"max_speakers,omitempty"`
}

type ExtractOptions struct {
	Diarization DiarizationResult `json:"diarization_result"`
	Speaker     string            `json:"speaker,omitempty"`
	OutputPath  string            `json:"output_path,omitempty"`
	OutputDir   string            `json:"output_dir,omitempty"`
	BaseName    string            `json:"base_name,omitempty"`
	PerSentence bool              `json:"per_sentence"`
}

// Downloadable model kinds accepted by Download.
const (
	ModelDiarization = "diarization"
	ModelDenoiser    = "denoiser"
)

// AudioAI exposes the audio helper's actions with typed results.
type AudioAI struct {
	inv *Invoker
}

func NewAudioAI(inv *Invoker) *AudioAI { return &AudioAI{inv: inv} }

func call[T any](ctx context.Context, inv *Invoker, tok *cancel.Token, req Request) (T, error) {
	res, err := inv.Invoke(ctx, tok, req)
	if err != nil {
		var zero T
		return zero, err
	}
	return Decode[T](res)
}

// EnvInfo describes the interpreter the helper runs under.
type EnvInfo struct {
	Executable       string   `json:"python_executable"`
	Version          string   `json:"python_version"`
	Path             []string `json:"python_path,omitempty"`
	Cwd              string   `json:"cwd"`
	WhisperInstalled bool     `json:"whisper_installed"`
	WhisperLocation  string   `json:"whisper_location,omitempty"`
	WhisperError     string   `json:"whisper_error,omitempty"`
}

func (a *AudioAI) DebugEnv(ctx context.Context) (EnvInfo, error) {
	return call[EnvInfo](ctx, a.inv, nil, NewRequest("debug-env"))
}

func (a *AudioAI) CheckModels(ctx context.Context) (ModelStatus, error) {
	return call[ModelStatus](ctx, a.inv, nil, NewRequest("check-models"))
}

// DownloadRequest maps a model name to the helper action that fetches it:
// "diarization", "denoiser", or any other name as a whisper model.
func DownloadRequest(model string) Request {
	switch model {
	case ModelDiarization:
		return NewRequest("download-diarization")
	case ModelDenoiser:
		return NewRequest("download-denoiser")
	default:
		return NewRequest("download-whisper", model)
	}
}

func (a *AudioAI) Download(ctx context.Context, tok *cancel.Token, req Request) (DownloadResult, error) {
	return call[DownloadResult](ctx, a.inv, tok, req)
}

func TranscribeRequest(path string, opts TranscribeOptions) (Request, error) {
	if opts.Model == "" {
		opts.Model = "base"
	}
	if opts.Format == "" {
		opts.Format = "srt"
	}
	return NewRequest("transcribe", path).WithOptions(opts)
}

func (a *AudioAI) Transcribe(ctx context.Context, tok *cancel.Token, path string, opts TranscribeOptions) (TranscriptionResult, error) {
	req, err := TranscribeRequest(path, opts)
	if err != nil {
		return TranscriptionResult{}, err
	}
	return call[TranscriptionResult](ctx, a.inv, tok, req)
}

func DiarizeRequest(path string, opts DiarizeOptions) (Request, error) {
	if opts.Model == "" {
		opts.Model = "base"
	}
	return NewRequest("transcribe-diarize", path).WithOptions(opts)
}

func (a *AudioAI) TranscribeDiarized(ctx context.Context, tok *cancel.Token, path string, opts DiarizeOptions) (DiarizationResult, error) {
	req, err := DiarizeRequest(path, opts)
	if err != nil {
		return DiarizationResult{}, err
	}
	return call[DiarizationResult](ctx, a.inv, tok, req)
}

// ExtractRequest builds an extract-speaker request. An empty audioPath
// exports subtitles only.
func ExtractRequest(audioPath string, opts ExtractOptions) (Request, error) {
	return NewRequest("extract-speaker", audioPath).WithOptions(opts)
}

// ExtractSpeaker exports SRT or audio for one or all speakers.
func (a *AudioAI) ExtractSpeaker(ctx context.Context, tok *cancel.Token, audioPath string, opts ExtractOptions) (FileResult, error) {
	req, err := ExtractRequest(audioPath, opts)
	if err != nil {
		return FileResult{}, err
	}
	return call[FileResult](ctx, a.inv, tok, req)
}

func DenoiseRequest(in, out, method string) Request {
	if method == "" {
		method = "denoiser"
	}
	return NewRequest("denoise", in, out, method)
}

func (a *AudioAI) Denoise(ctx context.Context, tok *cancel.Token, in, out, method string) (FileResult, error) {
	return call[FileResult](ctx, a.inv, tok, DenoiseRequest(in, out, method))
}

// Invoker returns the underlying invoker for raw requests.
func (a *AudioAI) Invoker() *Invoker { return a.inv }
