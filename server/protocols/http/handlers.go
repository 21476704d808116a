package http

import (
	stderrors "errors"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/gear6io/dspbridge/pkg/errors"
	"github.com/gear6io/dspbridge/server/config"
	"github.com/gear6io/dspbridge/server/dsp"
	"github.com/gear6io/dspbridge/server/hardware/pins"
	"github.com/gofiber/fiber/v2"
)

type parameterRequest struct {
	Value  float64 `json:"value"`
	Format string  `json:"format"`
}

type volumeRequest struct {
	DB float64 `json:"db"`
}

type resetRequest struct {
	Hard    bool `json:"hard"`
	DelayMs int  `json:"delay_ms"`
}

type pinRequest struct {
	On bool `json:"on"`
}

type pinResponse struct {
	Name   string `json:"name"`
	Number int    `json:"number"`
	Mode   string `json:"mode"`
	Value  bool   `json:"value"`
}

func (s *Server) handleStatus(c *fiber.Ctx) error {
	status := fiber.Map{
		"status": "running",
		"uptime": time.Since(s.started).Round(time.Second).String(),
		"dsp": fiber.Map{
			"type": s.dsp.Family().Name(),
			"bus":  s.dsp.BusName(),
			"pins": len(s.dsp.Pins()),
		},
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}
	if s.bridge != nil {
		status["bridge"] = s.bridge.GetStatus()
	}
	return c.JSON(status)
}

func (s *Server) handleGetParameter(c *fiber.Ctx) error {
	address, err := parseAddress(c.Params("address"))
	if err != nil {
		return err
	}
	format, err := dsp.ParseDataFormat(c.Query("format"))
	if err != nil {
		return err
	}

	v, err := s.dsp.GetParameterValue(address, format)
	if err != nil {
		return err
	}
	return c.JSON(parameterJSON(address, v))
}

func (s *Server) handleSetParameter(c *fiber.Ctx) error {
	address, err := parseAddress(c.Params("address"))
	if err != nil {
		return err
	}
	var req parameterRequest
	if err := c.BodyParser(&req); err != nil {
		return errors.New(ErrInvalidBody, "invalid parameter body", err)
	}
	format, err := dsp.ParseDataFormat(req.Format)
	if err != nil {
		return err
	}

	v := dsp.FloatValue(req.Value)
	if format == dsp.FormatInt {
		if req.Value != math.Trunc(req.Value) || req.Value < math.MinInt32 || req.Value > math.MaxInt32 {
			return errors.New(ErrInvalidBody, fmt.Sprintf("%v is not a 32-bit integer", req.Value), nil)
		}
		v = dsp.IntValue(int32(req.Value))
	}

	if err := s.dsp.SetParameterValue(address, v); err != nil {
		return err
	}
	return c.JSON(parameterJSON(address, v))
}

func (s *Server) handleSetVolume(c *fiber.Ctx) error {
	return s.volume(c, s.dsp.SetVolume)
}

func (s *Server) handleAdjustVolume(c *fiber.Ctx) error {
	return s.volume(c, s.dsp.AdjustVolume)
}

func (s *Server) volume(c *fiber.Ctx, op func(db float64, address uint16) (float64, error)) error {
	address, err := parseAddress(c.Params("address"))
	if err != nil {
		return err
	}
	var req volumeRequest
	if err := c.BodyParser(&req); err != nil {
		return errors.New(ErrInvalidBody, "invalid volume body", err)
	}

	db, err := op(req.DB, address)
	if err != nil {
		return err
	}

	resp := fiber.Map{"address": formatAddress(address), "muted": math.IsInf(db, -1)}
	if !math.IsInf(db, -1) {
		resp["db"] = db
	}
	return c.JSON(resp)
}

func (s *Server) handleReset(c *fiber.Ctx) error {
	var req resetRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return errors.New(ErrInvalidBody, "invalid reset body", err)
		}
	}

	var err error
	if req.Hard {
		err = s.dsp.HardReset(time.Duration(req.DelayMs) * time.Millisecond)
	} else {
		err = s.dsp.SoftReset()
	}
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"reset": "done", "hard": req.Hard})
}

func (s *Server) handleListPins(c *fiber.Ctx) error {
	all := s.dsp.Pins()
	out := make([]pinResponse, 0, len(all))
	for _, p := range all {
		out = append(out, pinJSON(p))
	}
	return c.JSON(out)
}

func (s *Server) handleSetPin(c *fiber.Ctx) error {
	name := c.Params("name")
	p, ok := s.dsp.Pin(name)
	if !ok {
		return errors.New(dsp.ErrPinNotFound, fmt.Sprintf("no pin named %q", name), nil)
	}
	var req pinRequest
	if err := c.BodyParser(&req); err != nil {
		return errors.New(ErrInvalidBody, "invalid pin body", err)
	}
	if err := p.Set(req.On); err != nil {
		return err
	}
	return c.JSON(pinJSON(p))
}

// handleError maps coded errors onto status codes.
func (s *Server) handleError(c *fiber.Ctx, err error) error {
	status := fiber.StatusInternalServerError
	var fe *fiber.Error
	switch {
	case stderrors.As(err, &fe):
		status = fe.Code
	case errors.HasCode(err, ErrInvalidAddress), errors.HasCode(err, ErrInvalidBody), errors.HasCode(err, dsp.ErrUnknownFormat),
		errors.HasCode(err, dsp.ErrInvalidVolume):
		status = fiber.StatusBadRequest
	case errors.HasCode(err, dsp.ErrPinNotFound):
		status = fiber.StatusNotFound
	case errors.HasCode(err, pins.ErrNotAnOutput):
		status = fiber.StatusConflict
	case errors.HasCode(err, dsp.ErrBus):
		status = fiber.StatusBadGateway
	}

	if status >= fiber.StatusInternalServerError {
		s.logger.Error().Err(err).
			Str("path", c.Path()).
			Str("request_id", c.GetRespHeader(fiber.HeaderXRequestID)).
			Msg("Admin request failed")
	}
	return c.Status(status).JSON(fiber.Map{
		"error": err.Error(),
		"code":  errors.GetCode(err),
	})
}

func parseAddress(s string) (uint16, error) {
	v, err := strconv.ParseUint(s, 0, 16)
	if err != nil {
		return 0, errors.New(ErrInvalidAddress, fmt.Sprintf("invalid register address %q", s), err)
	}
	return uint16(v), nil
}

func formatAddress(a uint16) string {
	return fmt.Sprintf("0x%04x", a)
}

func parameterJSON(address uint16, v dsp.Value) fiber.Map {
	m := fiber.Map{"address": formatAddress(address), "format": v.Format.String()}
	if v.Format == dsp.FormatInt {
		m["value"] = v.Int
	} else {
		m["value"] = v.Float
	}
	return m
}

func pinJSON(p *pins.Pin) pinResponse {
	mode := config.PinModeInput
	if p.IsOutput() {
		mode = config.PinModeOutput
	}
	return pinResponse{Name: p.Name, Number: p.Number, Mode: mode, Value: p.Value()}
}
