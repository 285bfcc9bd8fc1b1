package echoapi

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/tsanzi/ratiba/core"
	"github.com/tsanzi/ratiba/core/exam"
)

type examApi struct {
	svc *exam.Service
}

// ReassignHallRequest moves one hall allocation of a planned session to a
// different hall, keeping its seat count.
type ReassignHallRequest struct {
	FromHallID uuid.UUID `json:"from_hall_id"`
	ToHallID   uuid.UUID `json:"to_hall_id"`
}

func registerExamAPI(g *echo.Group, svc *exam.Service) {
	api := examApi{svc: svc}

	eg := g.Group("/exams")
	eg.POST("", api.plan)
	eg.GET("", api.query)

	dg := eg.Group("/:id")
	dg.GET("", api.retrieve)
	dg.PUT("/hall", api.reassignHall)
	dg.POST("/cancel", api.cancel)
	dg.POST("/complete", api.complete)
}

// Handlers

func (api *examApi) plan(ctx echo.Context) error {
	var data exam.PlanRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to PlanRequest")
	}

	session, err := api.svc.Plan(ctx.Request().Context(), data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, session)
}

func (api *examApi) query(ctx echo.Context) error {
	sessions, err := api.svc.QueryAll(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "querying exam sessions")
	}
	if sessions == nil {
		sessions = []exam.Session{}
	}
	return ctx.JSON(http.StatusOK, sessions)
}

func (api *examApi) retrieve(ctx echo.Context) error {
	id, err := parsePathID(ctx)
	if err != nil {
		return err
	}

	session, err := api.svc.GetByID(ctx.Request().Context(), id)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, session)
}

func (api *examApi) reassignHall(ctx echo.Context) error {
	id, err := parsePathID(ctx)
	if err != nil {
		return err
	}

	var data ReassignHallRequest
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to ReassignHallRequest")
	}
	var flds []core.FieldError
	if data.FromHallID == uuid.Nil {
		flds = append(flds, core.FieldError{Field: "from_hall_id", Error: "required"})
	}
	if data.ToHallID == uuid.Nil {
		flds = append(flds, core.FieldError{Field: "to_hall_id", Error: "required"})
	}
	if len(flds) > 0 {
		return core.NewValidationError(nil, flds...)
	}

	session, err := api.svc.ReassignHall(ctx.Request().Context(), id, data.FromHallID, data.ToHallID)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, session)
}

func (api *examApi) cancel(ctx echo.Context) error {
	id, err := parsePathID(ctx)
	if err != nil {
		return err
	}

	session, err := api.svc.Cancel(ctx.Request().Context(), id)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, session)
}

func (api *examApi) complete(ctx echo.Context) error {
	id, err := parsePathID(ctx)
	if err != nil {
		return err
	}

	session, err := api.svc.Complete(ctx.Request().Context(), id)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, session)
}
