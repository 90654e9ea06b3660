package server

import (
	_ "embed"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/mediascribe/transcriber/cmd/transcriber/config"
	"github.com/mediascribe/transcriber/cmd/transcriber/job"
	"github.com/mediascribe/transcriber/cmd/transcriber/media"

	"github.com/gin-gonic/gin"
)

//go:embed index.html
var indexHTML []byte

type downloadFormat int

const (
	formatText downloadFormat = iota
	formatSRT
	formatDOCX
)

type transcribeResponse struct {
	ID       string  `json:"id,omitempty"`
	Language string  `json:"language,omitempty"`
	Duration float64 `json:"duration"`
	Empty    bool    `json:"empty"`
	Preview  string  `json:"preview,omitempty"`
}

func (s *Server) handleIndex(c *gin.Context) {
	c.Data(http.StatusOK, "text/html; charset=utf-8", indexHTML)
}

// parseOptions builds the per-upload options from the form fields,
// seeded from the service configuration for any field left out.
func (s *Server) parseOptions(c *gin.Context) (job.Options, error) {
	opts := job.OptionsFromConfig(s.cfg)

	if v := c.PostForm("model_size"); v != "" {
		opts.ModelSize = config.ModelSize(v)
	}
	if v := c.PostForm("compute_type"); v != "" {
		opts.ComputeType = config.ComputeType(v)
	}
	if v := c.PostForm("vad_filter"); v != "" {
		vadFilter, err := strconv.ParseBool(v)
		if err != nil {
			return job.Options{}, errors.New("vad_filter should be a boolean")
		}
		opts.VADFilter = vadFilter
	}
	if v := c.PostForm("beam_size"); v != "" {
		beamSize, err := strconv.Atoi(v)
		if err != nil {
			return job.Options{}, errors.New("beam_size should be an integer")
		}
		opts.BeamSize = beamSize
	}
	opts.Language = c.PostForm("language")

	if err := opts.IsValid(); err != nil {
		return job.Options{}, err
	}

	return opts, nil
}

func (s *Server) handleTranscribe(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, int64(s.cfg.MaxUploadSizeMB)<<20)

	fileHeader, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing file upload"})
		return
	}

	if !job.SupportedExtension(fileHeader.Filename) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unsupported file type"})
		return
	}

	opts, err := s.parseOptions(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to open upload"})
		return
	}
	defer file.Close()

	res, err := s.processor.Process(c.Request.Context(), fileHeader.Filename, file, opts)
	if err != nil {
		slog.Error("processing failed",
			slog.String("filename", fileHeader.Filename),
			slog.String("err", err.Error()))
		c.JSON(statusForError(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, transcribeResponse{
		ID:       res.ID,
		Language: res.Language,
		Duration: res.Duration,
		Empty:    res.Empty,
		Preview:  res.Preview,
	})
}

// statusForError maps pipeline failures to HTTP statuses. A missing
// conversion binary is an unprocessable upload, a conversion failure
// points at the input, everything else is on us.
func statusForError(err error) int {
	switch {
	case errors.Is(err, media.ErrFFmpegNotFound):
		return http.StatusUnprocessableEntity
	case errors.Is(err, media.ErrConversionFailed):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) handleDownload(format downloadFormat) gin.HandlerFunc {
	return func(c *gin.Context) {
		artifacts := s.processor.Store().Get(c.Param("id"))
		if artifacts == nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "transcription not found"})
			return
		}

		var data []byte
		var contentType, filename string
		switch format {
		case formatText:
			data = artifacts.TXT
			contentType = "text/plain; charset=utf-8"
			filename = "transcript.txt"
		case formatSRT:
			data = artifacts.SRT
			contentType = "application/x-subrip"
			filename = "transcript.srt"
		case formatDOCX:
			data = artifacts.DOCX
			contentType = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
			filename = "transcript.docx"
		}

		c.Header("Content-Disposition", `attachment; filename="`+filename+`"`)
		c.Data(http.StatusOK, contentType, data)
	}
}
