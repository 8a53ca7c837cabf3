// Package server 提供上传表格、运行批处理、下载报告的 HTTP 接口。
package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/John-Robertt/ratingscout/internal/domain"
	"github.com/John-Robertt/ratingscout/internal/infra/fsx"
	"github.com/John-Robertt/ratingscout/internal/sheet"
)

// DefaultMaxUpload 是上传表格的大小上限。
const DefaultMaxUpload = 10 << 20

// BatchRunner 是批处理入口（batch.Runner 实现它）。
type BatchRunner interface {
	Run(ctx context.Context, rows []sheet.Row) domain.BatchReport
}

type Options struct {
	Runner    BatchRunner
	OutDir    string
	Logger    *slog.Logger
	MaxUpload int64
	// NewID 生成 run id；为空时使用 uuid.NewString。
	NewID func() string
}

type Server struct {
	runner    BatchRunner
	outDir    string
	logger    *slog.Logger
	maxUpload int64
	newID     func() string
	router    *chi.Mux
}

// UploadResponse 是 POST /upload 的响应体。
type UploadResponse struct {
	DownloadURL string               `json:"download_url"`
	RunID       string               `json:"run_id"`
	Summary     domain.ReportSummary `json:"summary"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func New(opts Options) *Server {
	s := &Server{
		runner:    opts.Runner,
		outDir:    opts.OutDir,
		logger:    opts.Logger,
		maxUpload: opts.MaxUpload,
		newID:     opts.NewID,
		router:    chi.NewRouter(),
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.maxUpload <= 0 {
		s.maxUpload = DefaultMaxUpload
	}
	if s.newID == nil {
		s.newID = uuid.NewString
	}

	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.Recoverer)
	s.router.Post("/upload", s.handleUpload)
	s.router.Get("/download/{name}", s.handleDownload)
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUpload)
	if err := r.ParseMultipartForm(s.maxUpload); err != nil {
		writeError(w, http.StatusBadRequest, "无法解析上传表单")
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "缺少上传文件（表单字段 file）")
		return
	}
	defer file.Close()

	if strings.ToLower(filepath.Ext(header.Filename)) != ".xlsx" {
		writeError(w, http.StatusBadRequest, "只支持 .xlsx 文件")
		return
	}

	rows, mode, err := sheet.Read(file, ".xlsx")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	started := time.Now()
	report := s.runner.Run(r.Context(), rows)
	report.RunID = s.newID()
	report.Input = header.Filename
	report.Mode = string(mode)

	data, err := sheet.EncodeReport(report)
	if err != nil {
		s.logger.Error("encode report failed", "error", err, "run_id", report.RunID)
		writeError(w, http.StatusInternalServerError, "生成报告失败")
		return
	}
	name := reportName(header.Filename, report.RunID)
	if err := fsx.WriteFile(filepath.Join(s.outDir, name), data); err != nil {
		s.logger.Error("write report failed", "error", err, "run_id", report.RunID, "name", name)
		writeError(w, http.StatusInternalServerError, "保存报告失败")
		return
	}

	s.logger.Info("batch finished",
		"run_id", report.RunID,
		"input", header.Filename,
		"rows", len(report.Rows),
		"found", report.Summary.Found,
		"duration", time.Since(started),
	)
	writeJSON(w, http.StatusOK, UploadResponse{
		DownloadURL: "/download/" + name,
		RunID:       report.RunID,
		Summary:     report.Summary,
	})
}

func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	p, err := fsx.ResolveIn(s.outDir, chi.URLParam(r, "name"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "文件名不合法")
		return
	}
	fi, err := os.Stat(p)
	if err != nil || !fi.Mode().IsRegular() {
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			s.logger.Error("stat report failed", "error", err, "path", p)
		}
		writeError(w, http.StatusNotFound, "报告不存在")
		return
	}

	w.Header().Set("Content-Disposition", `attachment; filename="`+filepath.Base(p)+`"`)
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	http.ServeFile(w, r, p)
}

var unsafeNameChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// reportName 由上传文件名与 run id 组成报告文件名（只保留安全字符）。
func reportName(upload, runID string) string {
	stem := strings.TrimSuffix(filepath.Base(upload), filepath.Ext(upload))
	stem = strings.Trim(unsafeNameChars.ReplaceAllString(stem, "_"), "._")
	if stem == "" {
		stem = "report"
	}
	id := runID
	if len(id) > 8 {
		id = id[:8]
	}
	return stem + "_report_" + id + ".xlsx"
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}
