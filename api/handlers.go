package api

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/bytedance/sonic"
	"github.com/labstack/echo/v4"
	log "github.com/sirupsen/logrus"

	"choreboard/board"
	"choreboard/domain"
	"choreboard/syncer"
)

const requestBodyMaxSize = 1 << 20

type handlers struct {
	boards  ControllerFunc
	auth    Authenticator
	deduper Deduper
	logger  *log.Logger
	now     func() time.Time
}

// Register wires up all API routes on the provided Echo instance.
func Register(e *echo.Echo, boards ControllerFunc, auth Authenticator, deduper Deduper, logger *log.Logger) {
	h := &handlers{boards: boards, auth: auth, deduper: deduper, logger: logger, now: time.Now}

	g := e.Group("/api/boards/:entry_id")
	g.GET("", h.getBoard)
	g.PUT("", h.putBoard)
	g.GET("/columns", h.getColumns)
	g.GET("/stats", h.getStats)
	g.GET("/next", h.getNextUp)
	g.GET("/export", h.exportBoard)
	g.POST("/import", h.importBoard)
	g.POST("/tasks", h.createTask)
	g.PUT("/tasks/:task_id", h.updateTask)
	g.DELETE("/tasks/:task_id", h.deleteTask)
	g.POST("/tasks/:task_id/move", h.moveTask)
	g.POST("/tasks/:task_id/assignees", h.assignPerson)
	g.DELETE("/tasks/:task_id/assignees/:person_id", h.unassignPerson)
	g.POST("/people", h.addPerson)
	g.DELETE("/people/:person_id", h.removePerson)
	g.POST("/undo", h.undo)
	g.POST("/refresh", h.refresh)
	g.POST("/clear-done", h.clearDone)

	e.GET("/healthz", healthz)
}

func healthz(c echo.Context) error {
	return c.NoContent(http.StatusOK)
}

func (h *handlers) getBoard(c echo.Context) (err error) {
	ctx := c.Request().Context()
	metrics, spanCtx := newBoardRequestMetrics(ctx, h.logger, c.Path(), "get_board")
	c.SetRequest(c.Request().WithContext(spanCtx))
	ctx = spanCtx
	defer func() {
		metrics.Log(c.Response().Status, err)
	}()

	authStart := time.Now()
	_, authErr := h.auth.UserIDFromAuthHeader(c.Request().Header.Get("Authorization"))
	metrics.ObserveAuth(time.Since(authStart))
	if authErr != nil {
		metrics.SetErrorStage("auth")
		err = c.String(http.StatusUnauthorized, authErr.Error())
		return err
	}

	loadStart := time.Now()
	b, loadErr := h.boards(c.Param("entry_id")).Load(ctx)
	metrics.ObserveApply(time.Since(loadStart))
	if loadErr != nil {
		metrics.SetErrorStage("load")
		err = h.writeError(c, loadErr)
		return err
	}
	metrics.SetTasksReturned(len(b.Tasks))

	encodeStart := time.Now()
	err = c.JSON(http.StatusOK, b)
	metrics.ObserveEncode(time.Since(encodeStart))
	if err != nil {
		metrics.SetErrorStage("encode_response")
	}
	return err
}

func (h *handlers) putBoard(c echo.Context) error {
	var b domain.Board
	if err := decodeBoard(c, &b); err != nil {
		return c.String(http.StatusBadRequest, "invalid body")
	}
	return h.mutate(c, "put_board", func(ctx context.Context, ctrl Controller) (domain.Board, error) {
		return ctrl.ReplaceBoard(ctx, b)
	})
}

// getColumns returns the board laid out per column for the requested week
// offset, persisted tasks plus projected future occurrences.
func (h *handlers) getColumns(c echo.Context) error {
	if ok, authErr := h.authorize(c); !ok {
		return authErr
	}
	weekOffset, err := intQueryParam(c, "week_offset", 0)
	if err != nil {
		return c.String(http.StatusBadRequest, "invalid week offset")
	}
	b, loadErr := h.boards(c.Param("entry_id")).Load(c.Request().Context())
	if loadErr != nil {
		return h.writeError(c, loadErr)
	}

	today := h.now()
	columns := make(map[string][]domain.Task, len(domain.AllColumns))
	for _, col := range domain.AllColumns {
		columns[col] = board.VisibleTasks(b, col, weekOffset, today)
	}
	return c.JSON(http.StatusOK, columnsResponse{
		WeekOffset: weekOffset,
		WeekStart:  domain.FormatDate(domain.WeekStartOffset(today, weekOffset)),
		Columns:    columns,
	})
}

func (h *handlers) getStats(c echo.Context) error {
	if ok, authErr := h.authorize(c); !ok {
		return authErr
	}
	weekOffset, err := intQueryParam(c, "week_offset", 0)
	if err != nil {
		return c.String(http.StatusBadRequest, "invalid week offset")
	}
	b, loadErr := h.boards(c.Param("entry_id")).Load(c.Request().Context())
	if loadErr != nil {
		return h.writeError(c, loadErr)
	}

	today := h.now()
	if personID := c.QueryParam("person_id"); personID != "" {
		return c.JSON(http.StatusOK, board.PersonWeekStats(b, personID, weekOffset, today))
	}
	stats := make([]board.PersonStats, 0, len(b.People))
	for _, p := range b.People {
		stats = append(stats, board.PersonWeekStats(b, p.ID, weekOffset, today))
	}
	return c.JSON(http.StatusOK, stats)
}

func (h *handlers) getNextUp(c echo.Context) error {
	if ok, authErr := h.authorize(c); !ok {
		return authErr
	}
	personID := c.QueryParam("person_id")
	if personID == "" {
		return c.String(http.StatusBadRequest, "person_id is required")
	}
	limit, err := intQueryParam(c, "limit", 0)
	if err != nil {
		return c.String(http.StatusBadRequest, "invalid limit")
	}
	b, loadErr := h.boards(c.Param("entry_id")).Load(c.Request().Context())
	if loadErr != nil {
		return h.writeError(c, loadErr)
	}
	return c.JSON(http.StatusOK, board.NextTasks(b, personID, limit, h.now()))
}

func (h *handlers) exportBoard(c echo.Context) error {
	if ok, authErr := h.authorize(c); !ok {
		return authErr
	}
	b, loadErr := h.boards(c.Param("entry_id")).Load(c.Request().Context())
	if loadErr != nil {
		return h.writeError(c, loadErr)
	}
	// The export is portable board state; the version token stays home.
	b.UpdatedAt = ""
	c.Response().Header().Set(echo.HeaderContentDisposition, `attachment; filename="board.json"`)
	return c.JSON(http.StatusOK, b)
}

func (h *handlers) importBoard(c echo.Context) error {
	var b domain.Board
	if err := decodeBoard(c, &b); err != nil {
		return c.String(http.StatusBadRequest, "invalid body")
	}
	b.UpdatedAt = ""
	return h.mutate(c, "import_board", func(ctx context.Context, ctrl Controller) (domain.Board, error) {
		return ctrl.ReplaceBoard(ctx, b)
	})
}

func (h *handlers) createTask(c echo.Context) error {
	var form board.TaskForm
	if err := decodeBody(c, &form); err != nil {
		return c.String(http.StatusBadRequest, "invalid body")
	}
	return h.mutate(c, "create_task", func(ctx context.Context, ctrl Controller) (domain.Board, error) {
		return ctrl.Mutate(ctx, "create_task", true, func(b domain.Board) (domain.Board, error) {
			return board.CreateTask(b, form, h.now())
		})
	})
}

func (h *handlers) updateTask(c echo.Context) error {
	taskID := c.Param("task_id")
	var form board.TaskForm
	if err := decodeBody(c, &form); err != nil {
		return c.String(http.StatusBadRequest, "invalid body")
	}
	return h.mutate(c, "update_task", func(ctx context.Context, ctrl Controller) (domain.Board, error) {
		return ctrl.Mutate(ctx, "update_task", true, func(b domain.Board) (domain.Board, error) {
			return board.UpdateTask(b, taskID, form, h.now())
		})
	})
}

func (h *handlers) deleteTask(c echo.Context) error {
	taskID := c.Param("task_id")
	scope := c.QueryParam("scope")
	return h.mutate(c, "delete_task", func(ctx context.Context, ctrl Controller) (domain.Board, error) {
		return ctrl.Mutate(ctx, "delete_task", true, func(b domain.Board) (domain.Board, error) {
			return board.DeleteTask(b, taskID, scope)
		})
	})
}

type movePayload struct {
	Column string `json:"column"`
}

func (h *handlers) moveTask(c echo.Context) error {
	taskID := c.Param("task_id")
	var payload movePayload
	if err := decodeBody(c, &payload); err != nil {
		return c.String(http.StatusBadRequest, "invalid body")
	}
	return h.mutate(c, "move_task", func(ctx context.Context, ctrl Controller) (domain.Board, error) {
		return ctrl.Mutate(ctx, "move_task", true, func(b domain.Board) (domain.Board, error) {
			return board.MoveTask(b, taskID, payload.Column, h.now())
		})
	})
}

type assigneePayload struct {
	PersonID string `json:"person_id"`
}

func (h *handlers) assignPerson(c echo.Context) error {
	taskID := c.Param("task_id")
	var payload assigneePayload
	if err := decodeBody(c, &payload); err != nil {
		return c.String(http.StatusBadRequest, "invalid body")
	}
	return h.mutate(c, "assign_person", func(ctx context.Context, ctrl Controller) (domain.Board, error) {
		return ctrl.Mutate(ctx, "assign_person", true, func(b domain.Board) (domain.Board, error) {
			return board.AssignPerson(b, taskID, payload.PersonID, true)
		})
	})
}

func (h *handlers) unassignPerson(c echo.Context) error {
	taskID := c.Param("task_id")
	personID := c.Param("person_id")
	return h.mutate(c, "unassign_person", func(ctx context.Context, ctrl Controller) (domain.Board, error) {
		return ctrl.Mutate(ctx, "unassign_person", true, func(b domain.Board) (domain.Board, error) {
			return board.AssignPerson(b, taskID, personID, false)
		})
	})
}

type personPayload struct {
	Name string `json:"name"`
	Role string `json:"role"`
}

func (h *handlers) addPerson(c echo.Context) error {
	var payload personPayload
	if err := decodeBody(c, &payload); err != nil {
		return c.String(http.StatusBadRequest, "invalid body")
	}
	return h.mutate(c, "add_person", func(ctx context.Context, ctrl Controller) (domain.Board, error) {
		return ctrl.Mutate(ctx, "add_person", true, func(b domain.Board) (domain.Board, error) {
			return board.AddPerson(b, payload.Name, payload.Role)
		})
	})
}

func (h *handlers) removePerson(c echo.Context) error {
	personID := c.Param("person_id")
	return h.mutate(c, "remove_person", func(ctx context.Context, ctrl Controller) (domain.Board, error) {
		return ctrl.Mutate(ctx, "remove_person", true, func(b domain.Board) (domain.Board, error) {
			return board.RemovePerson(b, personID)
		})
	})
}

func (h *handlers) undo(c echo.Context) error {
	return h.mutate(c, "undo", func(ctx context.Context, ctrl Controller) (domain.Board, error) {
		return ctrl.Undo(ctx)
	})
}

func (h *handlers) refresh(c echo.Context) error {
	return h.mutate(c, "weekly_refresh", func(ctx context.Context, ctrl Controller) (domain.Board, error) {
		return ctrl.WeeklyRefresh(ctx)
	})
}

func (h *handlers) clearDone(c echo.Context) error {
	return h.mutate(c, "clear_done", func(ctx context.Context, ctrl Controller) (domain.Board, error) {
		return ctrl.ClearDone(ctx)
	})
}

// mutate is the shared write path: auth, idempotency bookkeeping, the board
// operation itself, and error mapping. On success the full saved board is
// returned so clients can reconcile in one round trip.
func (h *handlers) mutate(c echo.Context, operation string, run func(ctx context.Context, ctrl Controller) (domain.Board, error)) (err error) {
	ctx := c.Request().Context()
	metrics, spanCtx := newBoardRequestMetrics(ctx, h.logger, c.Path(), operation)
	c.SetRequest(c.Request().WithContext(spanCtx))
	ctx = spanCtx
	defer func() {
		metrics.Log(c.Response().Status, err)
	}()

	authStart := time.Now()
	_, authErr := h.auth.UserIDFromAuthHeader(c.Request().Header.Get("Authorization"))
	metrics.ObserveAuth(time.Since(authStart))
	if authErr != nil {
		metrics.SetErrorStage("auth")
		err = c.String(http.StatusUnauthorized, authErr.Error())
		return err
	}

	entryID := c.Param("entry_id")
	ctrl := h.boards(entryID)

	idemKey := c.Request().Header.Get("Idempotency-Key")
	if idemKey != "" && h.deduper != nil {
		added, dedupErr := h.deduper.Add(ctx, entryID, idemKey)
		if dedupErr != nil {
			metrics.SetErrorStage("dedupe")
			err = c.String(http.StatusInternalServerError, "idempotency check failed")
			return err
		}
		if !added {
			// Already applied, hand back the current state.
			b, loadErr := ctrl.Load(ctx)
			if loadErr != nil {
				metrics.SetErrorStage("load")
				err = h.writeError(c, loadErr)
				return err
			}
			err = c.JSON(http.StatusOK, b)
			return err
		}
	}

	saveStart := time.Now()
	b, runErr := run(ctx, ctrl)
	metrics.ObserveSave(time.Since(saveStart))
	if runErr != nil {
		if idemKey != "" && h.deduper != nil {
			if remErr := h.deduper.Remove(ctx, entryID, idemKey); remErr != nil {
				h.logger.Errorf("dedupe rollback failed, err: %v, key: %s, entry: %s", remErr, idemKey, entryID)
			}
		}
		metrics.SetErrorStage("apply")
		err = h.writeError(c, runErr)
		return err
	}
	metrics.SetTasksReturned(len(b.Tasks))

	encodeStart := time.Now()
	err = c.JSON(http.StatusOK, b)
	metrics.ObserveEncode(time.Since(encodeStart))
	if err != nil {
		metrics.SetErrorStage("encode_response")
	}
	return err
}

// authorize validates the bearer token and writes the 401 itself. ok is
// false when the response has already been written.
func (h *handlers) authorize(c echo.Context) (bool, error) {
	if _, err := h.auth.UserIDFromAuthHeader(c.Request().Header.Get("Authorization")); err != nil {
		return false, c.String(http.StatusUnauthorized, err.Error())
	}
	return true, nil
}

func (h *handlers) writeError(c echo.Context, err error) error {
	var vErr *board.ValidationError
	var fatal *syncer.SaveConflictError
	switch {
	case errors.As(err, &vErr):
		return c.String(http.StatusBadRequest, vErr.Error())
	case errors.Is(err, syncer.ErrSaveInProgress):
		return c.String(http.StatusConflict, err.Error())
	case errors.Is(err, syncer.ErrNothingToUndo):
		return c.String(http.StatusNotFound, err.Error())
	case errors.As(err, &fatal):
		return c.String(http.StatusConflict, err.Error())
	case syncer.IsUnavailable(err):
		return c.String(http.StatusServiceUnavailable, "board store unavailable")
	default:
		c.Logger().Error(err)
		return c.String(http.StatusInternalServerError, err.Error())
	}
}

type columnsResponse struct {
	WeekOffset int                      `json:"week_offset"`
	WeekStart  string                   `json:"week_start"`
	Columns    map[string][]domain.Task `json:"columns"`
}

func decodeBody(c echo.Context, dst any) error {
	lr := io.LimitReader(c.Request().Body, requestBodyMaxSize)
	dec := sonic.ConfigStd.NewDecoder(lr)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

// decodeBoard is intentionally liberal: imported and replaced boards may come
// from older exports with extra fields, and normalization cleans them up.
func decodeBoard(c echo.Context, dst *domain.Board) error {
	lr := io.LimitReader(c.Request().Body, requestBodyMaxSize)
	return sonic.ConfigStd.NewDecoder(lr).Decode(dst)
}

func intQueryParam(c echo.Context, name string, fallback int) (int, error) {
	raw := c.QueryParam(name)
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return 0, errors.New("invalid " + name)
	}
	return v, nil
}
