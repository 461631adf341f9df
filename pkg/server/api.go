// Copyright 2026 SmartBin Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
//

package server

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/smartbin/BinWorker/model"
	"github.com/smartbin/BinWorker/pkg/detection"
	"github.com/smartbin/BinWorker/pkg/service"
)

const (
	defaultDetectionLimit = 20
	maxDetectionLimit     = 500
)

// BinsResponse is returned by GET /api/v1/bins.
type BinsResponse struct {
	Bins          model.BinLevels `json:"bins"`
	Updated       time.Time       `json:"updated"`
	FullThreshold float64         `json:"full_threshold"`
	FullBins      []model.Bin     `json:"full_bins"`
}

// ResultResponse is returned by actions.
type ResultResponse struct {
	Result string `json:"result"`
}

func healthHandler(c echo.Context) error {
	return c.String(http.StatusOK, "OK\n")
}

func (s *Server) handleStatus(c echo.Context) error {
	return c.JSON(http.StatusOK, s.service.Status())
}

func (s *Server) handleBins(c echo.Context) error {
	levels, updated, err := s.service.FillLevels(c.Request().Context())
	if err != nil {
		return errors.Wrap(err, "failed to get fill levels")
	}
	if levels == nil {
		levels = model.BinLevels{}
	}
	st := s.service.Status()
	return c.JSON(http.StatusOK, BinsResponse{
		Bins:          levels,
		Updated:       updated,
		FullThreshold: st.FullThreshold,
		FullBins:      st.FullBins,
	})
}

func (s *Server) handleDetections(c echo.Context) error {
	limit := defaultDetectionLimit
	if raw := c.QueryParam("limit"); raw != "" {
		x, err := strconv.Atoi(raw)
		if err != nil || x < 1 {
			return echo.NewHTTPError(http.StatusBadRequest, "limit must be a positive number")
		}
		limit = x
	}
	if limit > maxDetectionLimit {
		limit = maxDetectionLimit
	}
	list, err := s.service.RecentDetections(c.Request().Context(), limit)
	if err != nil {
		return errors.Wrap(err, "failed to get detections")
	}
	return c.JSON(http.StatusOK, list)
}

func (s *Server) handleEvents(c echo.Context) error {
	return c.JSON(http.StatusOK, s.service.RecentEvents())
}

func (s *Server) handleTrigger(c echo.Context) error {
	err := s.service.Trigger(c.Request().Context())
	switch {
	case err == nil:
		return c.JSON(http.StatusOK, ResultResponse{Result: "processed"})
	case errors.Is(err, service.ErrBusy):
		return echo.NewHTTPError(http.StatusConflict, "already processing")
	case errors.Is(err, detection.ErrNoCamera):
		return echo.NewHTTPError(http.StatusServiceUnavailable, "no camera available")
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
}

func (s *Server) handleOpenBin(c echo.Context) error {
	bin, err := model.ParseBin(c.Param("bin"))
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	}
	if err := s.service.OpenBin(c.Request().Context(), bin); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, ResultResponse{Result: "opened " + bin.String()})
}
