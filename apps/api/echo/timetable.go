package echoapi

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/tsanzi/ratiba/core"
	"github.com/tsanzi/ratiba/core/schedule"
)

type timetableApi struct {
	svc *schedule.Service
}

func registerTimetableAPI(g *echo.Group, svc *schedule.Service) {
	api := timetableApi{svc: svc}

	tg := g.Group("/timetable/entries")
	tg.POST("", api.create)
	tg.GET("", api.query)

	dg := tg.Group("/:id")
	dg.GET("", api.retrieve)
	dg.PUT("", api.update)
	dg.DELETE("", api.destroy)
}

// Handlers

func (api *timetableApi) create(ctx echo.Context) error {
	var data schedule.NewEntry
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewEntry")
	}

	entry, err := api.svc.Create(ctx.Request().Context(), data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, entry)
}

func (api *timetableApi) query(ctx echo.Context) error {
	filter, err := parseQueryFilter(ctx)
	if err != nil {
		return err
	}

	entries, err := api.svc.Filter(ctx.Request().Context(), filter)
	if err != nil {
		return errors.Wrap(err, "querying timetable entries")
	}
	if entries == nil {
		entries = []schedule.Entry{}
	}
	return ctx.JSON(http.StatusOK, entries)
}

func (api *timetableApi) retrieve(ctx echo.Context) error {
	id, err := parsePathID(ctx)
	if err != nil {
		return err
	}

	entry, err := api.svc.GetByID(ctx.Request().Context(), id)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, entry)
}

func (api *timetableApi) update(ctx echo.Context) error {
	id, err := parsePathID(ctx)
	if err != nil {
		return err
	}

	var data schedule.UpdateEntry
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateEntry")
	}

	entry, err := api.svc.Update(ctx.Request().Context(), id, data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, entry)
}

func (api *timetableApi) destroy(ctx echo.Context) error {
	id, err := parsePathID(ctx)
	if err != nil {
		return err
	}

	if err = api.svc.Delete(ctx.Request().Context(), id); err != nil {
		return err
	}
	return ctx.NoContent(http.StatusNoContent)
}

// Helpers

func parsePathID(ctx echo.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(ctx.Param("id"))
	if err != nil {
		return uuid.Nil, errHttpNotFound
	}
	return id, nil
}

func parseQueryFilter(ctx echo.Context) (schedule.QueryFilter, error) {
	var filter schedule.QueryFilter
	var flds []core.FieldError

	parse := func(name string, dst *uuid.UUID) {
		raw := ctx.QueryParam(name)
		if raw == "" {
			return
		}
		id, err := uuid.Parse(raw)
		if err != nil {
			flds = append(flds, core.FieldError{Field: name, Error: "invalid uuid"})
			return
		}
		*dst = id
	}
	parse("teacher_id", &filter.TeacherID)
	parse("class_id", &filter.ClassID)
	parse("hall_id", &filter.HallID)

	if len(flds) > 0 {
		return filter, core.NewValidationError(errors.New("invalid filters"), flds...)
	}
	return filter, nil
}
