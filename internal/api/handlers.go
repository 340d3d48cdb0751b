package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"pos-voice-relay/internal/pipeline"
	"pos-voice-relay/internal/types"
)

// ContractHeader reports which /audio-clasificar contract answered.
const ContractHeader = "X-Contract-Version"

func (s *Server) Health(c *gin.Context) {
	c.String(http.StatusOK, "ok")
}

// ClassifyAudio handles POST /audio-clasificar.
func (s *Server) ClassifyAudio(c *gin.Context) {
	c.Header(ContractHeader, s.contract)

	var req types.ClassifyRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Cuerpo JSON inválido", "details": err.Error()})
		return
	}
	if req.AudioURL == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Falta el campo 'audioUrl'"})
		return
	}
	if s.requirePuntoID && req.PuntoID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Falta el campo 'punto_id'"})
		return
	}

	out, err := s.classifier.Process(c.Request.Context(), req)
	if err != nil {
		s.logFailure(c, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": errorBody(err)})
		return
	}
	c.JSON(http.StatusOK, out)
}

// LoadCSV handles POST /cargar-csv.
func (s *Server) LoadCSV(c *gin.Context) {
	s.runLoad(c, s.csvLoader, "Carga CSV completada")
}

// LoadGeoJSON handles POST /cargar-geojson.
func (s *Server) LoadGeoJSON(c *gin.Context) {
	s.runLoad(c, s.geoLoader, "Carga GeoJSON completada")
}

// runLoad runs a bulk load to completion even if the caller disconnects.
// Per-item failures are not reported back.
func (s *Server) runLoad(c *gin.Context, l Loader, msg string) {
	if _, err := l.Load(context.WithoutCancel(c.Request.Context())); err != nil {
		s.logFailure(c, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"mensaje": msg})
}

func (s *Server) logFailure(c *gin.Context, err error) {
	entry := s.log.WithError(err).WithField(requestIDKey, c.GetString(requestIDKey))
	var se *pipeline.StageError
	if errors.As(err, &se) {
		entry = entry.WithField("stage", string(se.Stage))
	}
	entry.Error("handler failed")
}

// errorBody relays an upstream payload untouched when there is one, else
// the error message.
func errorBody(err error) interface{} {
	var up *types.UpstreamError
	if errors.As(err, &up) && len(up.Payload) > 0 {
		if json.Valid(up.Payload) {
			return json.RawMessage(up.Payload)
		}
		return string(up.Payload)
	}
	return err.Error()
}
