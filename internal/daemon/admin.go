package daemon

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"portage/internal/logger"
	"portage/internal/model"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"
)

// The admin API is a read-mostly HTTP surface for the CLI: daemon
// status, job snapshots, attempt history and a shutdown hook.
func (s *Server) startAdmin() {
	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())

	e.GET("/status", s.handleAdminStatus)
	e.GET("/jobs", s.handleAdminJobs)
	e.GET("/modules", s.handleAdminModules)
	e.GET("/history", s.handleAdminHistory)
	e.POST("/stop", s.handleAdminStop)

	s.admin = e

	go func() {
		addr := ":" + strconv.Itoa(s.cfg.AdminPort)
		logger.Log.Info("admin server started",
			zap.String("addr", addr))

		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Log.Error("admin server error", zap.Error(err))
		}
	}()
}

func (s *Server) handleAdminStatus(c echo.Context) error {
	counts := make(map[model.Status]int)
	for _, j := range s.sched.History().Jobs() {
		counts[j.Status()]++
	}

	return c.JSON(http.StatusOK, map[string]any{
		"instance_id": s.instanceID,
		"uptime":      time.Since(s.startedAt).Round(time.Second).String(),
		"jobs":        counts,
		"queued":      s.sched.Queue().Len(),
		"modules":     len(s.registry.Modules()),
	})
}

func (s *Server) handleAdminJobs(c echo.Context) error {
	jobs := s.sched.History().Jobs()

	out := make([]map[string]string, 0, len(jobs))
	for _, j := range jobs {
		out = append(out, j.Snapshot().Map())
	}

	return c.JSON(http.StatusOK, map[string]any{"jobs": out})
}

func (s *Server) handleAdminModules(c echo.Context) error {
	mods := s.registry.Modules()

	out := make([]map[string]string, 0, len(mods))
	for _, m := range mods {
		out = append(out, m.Info().Map())
	}

	return c.JSON(http.StatusOK, map[string]any{"modules": out})
}

func (s *Server) handleAdminHistory(c echo.Context) error {
	if s.repo == nil {
		return c.JSON(http.StatusServiceUnavailable, map[string]string{"error": "no history database"})
	}

	n := 20
	if nStr := c.QueryParam("n"); nStr != "" {
		if parsed, err := strconv.Atoi(nStr); err == nil {
			n = parsed
		}
	}

	attempts, err := s.repo.Recent(n)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}

	return c.JSON(http.StatusOK, attempts)
}

func (s *Server) handleAdminStop(c echo.Context) error {
	s.stopCh <- struct{}{}
	return c.JSON(http.StatusOK, map[string]string{"status": "stopping"})
}
