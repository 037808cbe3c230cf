package helper

import (
	"context"

	"askocr/cancel"
)

// MusicScriptName is the track downloader shipped next to the audio helper.
// It takes a URL and an output directory and reports the audio files it
// left there.
const MusicScriptName = "downloader.py"

type MusicResult struct {
	Success bool     `json:"success"`
	Files   []string `json:"files,omitempty"`
	Error   string   `json:"error,omitempty"`
	Stderr  string   `json:"stderr,omitempty"`
}

// Music runs the downloader script through its own Invoker, resolved once
// like the audio helper.
type Music struct {
	inv *Invoker
}

func NewMusic(inv *Invoker) *Music { return &Music{inv: inv} }

func MusicRequest(url, dir string) Request {
	return NewBareRequest("download-music", url, dir)
}

func (m *Music) Download(ctx context.Context, tok *cancel.Token, url, dir string) (MusicResult, error) {
	return call[MusicResult](ctx, m.inv, tok, MusicRequest(url, dir))
}

func (m *Music) Invoker() *Invoker { return m.inv }
