package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/mediascribe/transcriber/cmd/transcriber/config"
	"github.com/mediascribe/transcriber/cmd/transcriber/job"
	"github.com/mediascribe/transcriber/cmd/transcriber/media"

	"github.com/stretchr/testify/require"
)

type fakeProcessor struct {
	store    *job.Store
	result   *job.Result
	err      error
	lastName string
	lastOpts job.Options
}

func (p *fakeProcessor) Process(_ context.Context, filename string, input io.Reader, opts job.Options) (*job.Result, error) {
	p.lastName = filename
	p.lastOpts = opts
	if _, err := io.Copy(io.Discard, input); err != nil {
		return nil, err
	}
	if p.err != nil {
		return nil, p.err
	}
	return p.result, nil
}

func (p *fakeProcessor) Store() *job.Store {
	return p.store
}

func setupServer(t *testing.T, processor *fakeProcessor) *Server {
	t.Helper()

	if processor.store == nil {
		processor.store = job.NewStore()
	}

	cfg := config.TranscriberConfig{VADFilter: true}
	cfg.SetDefaults()

	return New(cfg, processor)
}

func multipartUpload(t *testing.T, filename string, fields map[string]string) (*bytes.Buffer, string) {
	t.Helper()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	if filename != "" {
		fw, err := mw.CreateFormFile("file", filename)
		require.NoError(t, err)
		_, err = fw.Write([]byte("fake media bytes"))
		require.NoError(t, err)
	}

	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	require.NoError(t, mw.Close())

	return &body, mw.FormDataContentType()
}

func doTranscribe(t *testing.T, s *Server, filename string, fields map[string]string) *httptest.ResponseRecorder {
	t.Helper()

	body, contentType := multipartUpload(t, filename, fields)
	req := httptest.NewRequest(http.MethodPost, "/api/transcribe", body)
	req.Header.Set("Content-Type", contentType)

	rr := httptest.NewRecorder()
	s.Handler().ServeHTTP(rr, req)

	return rr
}

func TestHandleIndex(t *testing.T) {
	s := setupServer(t, &fakeProcessor{})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rr := httptest.NewRecorder()
	s.Handler().ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	require.Contains(t, rr.Header().Get("Content-Type"), "text/html")
	require.Contains(t, rr.Body.String(), "MediaScribe")
}

func TestHandleTranscribe(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		s := setupServer(t, &fakeProcessor{})
		rr := doTranscribe(t, s, "", nil)
		require.Equal(t, http.StatusBadRequest, rr.Code)
		require.Contains(t, rr.Body.String(), "missing file upload")
	})

	t.Run("unsupported extension", func(t *testing.T) {
		s := setupServer(t, &fakeProcessor{})
		rr := doTranscribe(t, s, "slides.pdf", nil)
		require.Equal(t, http.StatusBadRequest, rr.Code)
		require.Contains(t, rr.Body.String(), "unsupported file type")
	})

	t.Run("invalid options", func(t *testing.T) {
		s := setupServer(t, &fakeProcessor{})

		rr := doTranscribe(t, s, "talk.mp4", map[string]string{"beam_size": "42"})
		require.Equal(t, http.StatusBadRequest, rr.Code)
		require.Contains(t, rr.Body.String(), "BeamSize should be in the range")

		rr = doTranscribe(t, s, "talk.mp4", map[string]string{"beam_size": "lots"})
		require.Equal(t, http.StatusBadRequest, rr.Code)
		require.Contains(t, rr.Body.String(), "beam_size should be an integer")

		rr = doTranscribe(t, s, "talk.mp4", map[string]string{"vad_filter": "maybe"})
		require.Equal(t, http.StatusBadRequest, rr.Code)
		require.Contains(t, rr.Body.String(), "vad_filter should be a boolean")

		rr = doTranscribe(t, s, "talk.mp4", map[string]string{"model_size": "huge"})
		require.Equal(t, http.StatusBadRequest, rr.Code)
		require.Contains(t, rr.Body.String(), "ModelSize value is not valid")
	})

	t.Run("missing ffmpeg", func(t *testing.T) {
		s := setupServer(t, &fakeProcessor{err: media.ErrFFmpegNotFound})
		rr := doTranscribe(t, s, "talk.mp4", nil)
		require.Equal(t, http.StatusUnprocessableEntity, rr.Code)
		require.Contains(t, rr.Body.String(), "install system FFmpeg")
	})

	t.Run("conversion failure", func(t *testing.T) {
		s := setupServer(t, &fakeProcessor{err: media.ErrConversionFailed})
		rr := doTranscribe(t, s, "talk.mp4", nil)
		require.Equal(t, http.StatusBadGateway, rr.Code)
		require.Contains(t, rr.Body.String(), "failed to convert input to WAV")
	})

	t.Run("model initialization failure", func(t *testing.T) {
		s := setupServer(t, &fakeProcessor{err: job.ErrModelInit})
		rr := doTranscribe(t, s, "talk.mp4", nil)
		require.Equal(t, http.StatusInternalServerError, rr.Code)
	})

	t.Run("empty result", func(t *testing.T) {
		s := setupServer(t, &fakeProcessor{result: &job.Result{Empty: true, Duration: 4.2}})
		rr := doTranscribe(t, s, "talk.mp4", nil)
		require.Equal(t, http.StatusOK, rr.Code)

		var resp transcribeResponse
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
		require.True(t, resp.Empty)
		require.Empty(t, resp.ID)
	})

	t.Run("success", func(t *testing.T) {
		processor := &fakeProcessor{result: &job.Result{
			ID:       "abc123",
			Language: "en",
			Duration: 12.5,
			Preview:  "Hello there.",
		}}
		s := setupServer(t, processor)

		rr := doTranscribe(t, s, "talk.mp4", map[string]string{
			"model_size":   "medium",
			"compute_type": "int8",
			"beam_size":    "3",
			"language":     "en",
			"vad_filter":   "false",
		})
		require.Equal(t, http.StatusOK, rr.Code)

		var resp transcribeResponse
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
		require.Equal(t, "abc123", resp.ID)
		require.Equal(t, "en", resp.Language)
		require.Equal(t, "Hello there.", resp.Preview)
		require.False(t, resp.Empty)

		require.Equal(t, "talk.mp4", processor.lastName)
		require.Equal(t, job.Options{
			ModelSize:   config.ModelSizeMedium,
			ComputeType: config.ComputeTypeInt8,
			VADFilter:   false,
			BeamSize:    3,
			Language:    "en",
		}, processor.lastOpts)
	})

	t.Run("options default from config", func(t *testing.T) {
		processor := &fakeProcessor{result: &job.Result{ID: "abc123"}}
		s := setupServer(t, processor)

		rr := doTranscribe(t, s, "talk.mp4", nil)
		require.Equal(t, http.StatusOK, rr.Code)
		require.Equal(t, job.Options{
			ModelSize:   config.ModelSizeDefault,
			ComputeType: config.ComputeTypeDefault,
			VADFilter:   true,
			BeamSize:    config.BeamSizeDefault,
		}, processor.lastOpts)
	})
}

func TestHandleDownload(t *testing.T) {
	store := job.NewStore()
	store.Put("known", &job.Artifacts{
		TXT:  []byte("plain text"),
		SRT:  []byte("1\n00:00:00,000 --> 00:00:01,000\nplain text\n"),
		DOCX: []byte{0x50, 0x4b, 0x03, 0x04},
	})
	s := setupServer(t, &fakeProcessor{store: store})

	get := func(path string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		rr := httptest.NewRecorder()
		s.Handler().ServeHTTP(rr, req)
		return rr
	}

	t.Run("unknown ID", func(t *testing.T) {
		rr := get("/api/transcriptions/missing/transcript.txt")
		require.Equal(t, http.StatusNotFound, rr.Code)
	})

	t.Run("txt", func(t *testing.T) {
		rr := get("/api/transcriptions/known/transcript.txt")
		require.Equal(t, http.StatusOK, rr.Code)
		require.Contains(t, rr.Header().Get("Content-Type"), "text/plain")
		require.Equal(t, `attachment; filename="transcript.txt"`, rr.Header().Get("Content-Disposition"))
		require.Equal(t, "plain text", rr.Body.String())
	})

	t.Run("srt", func(t *testing.T) {
		rr := get("/api/transcriptions/known/transcript.srt")
		require.Equal(t, http.StatusOK, rr.Code)
		require.Equal(t, "application/x-subrip", rr.Header().Get("Content-Type"))
		require.Equal(t, `attachment; filename="transcript.srt"`, rr.Header().Get("Content-Disposition"))
		require.Contains(t, rr.Body.String(), "00:00:00,000 --> 00:00:01,000")
	})

	t.Run("docx", func(t *testing.T) {
		rr := get("/api/transcriptions/known/transcript.docx")
		require.Equal(t, http.StatusOK, rr.Code)
		require.Equal(t,
			"application/vnd.openxmlformats-officedocument.wordprocessingml.document",
			rr.Header().Get("Content-Type"))
		require.Equal(t, `attachment; filename="transcript.docx"`, rr.Header().Get("Content-Disposition"))
		require.Equal(t, []byte{0x50, 0x4b, 0x03, 0x04}, rr.Body.Bytes())
	})
}

func TestStatusForError(t *testing.T) {
	require.Equal(t, http.StatusUnprocessableEntity, statusForError(media.ErrFFmpegNotFound))
	require.Equal(t, http.StatusBadGateway, statusForError(media.ErrConversionFailed))
	require.Equal(t, http.StatusInternalServerError, statusForError(errors.New("boom")))
}
