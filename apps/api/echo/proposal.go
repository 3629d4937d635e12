package echoapi

import (
	"net/http"
	"net/url"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/fetc/proposals/core/attachment"
	"github.com/fetc/proposals/core/proposal"
	"github.com/fetc/proposals/core/review"
	"github.com/fetc/proposals/core/stepper"
	"github.com/fetc/proposals/core/user"
)

// maxUploadSize bounds multipart uploads.
const maxUploadSize = 32 << 20

type proposalApi struct {
	svc     review.Service
	userSvc user.Service
}

func registerProposalAPI(g *echo.Group, jwt echo.MiddlewareFunc, deps ServerDeps) {
	api := proposalApi{
		svc:     deps.ReviewSvc,
		userSvc: deps.UserSvc,
	}

	pg := g.Group("/proposals", jwt)
	pg.GET("", api.query)
	pg.POST("", api.create)

	dg := pg.Group("/:id")
	dg.GET("", api.retrieve)
	dg.PUT("", api.update)
	dg.DELETE("", api.destroy)
	dg.GET("/stepper", api.stepper)
	dg.POST("/revisions", api.createRevision)
	dg.POST("/submit", api.submit)
	dg.POST("/supervisor-decision", api.supervisorDecide)
	dg.POST("/decision", api.decide, committeeMiddleware(user.RoleSecretary, user.RoleChair))
	dg.GET("/pdf", api.pdf)
	dg.GET("/diff", api.diff)

	ag := dg.Group("/attachments")
	ag.GET("", api.slots)
	ag.POST("", api.attach)
	ag.DELETE("/:aid", api.detach)
	ag.GET("/:aid/download", api.download)
}

func (api *proposalApi) user(ctx echo.Context) (user.User, error) {
	usr, err := getContextUser(ctx, api.userSvc)
	return usr, errors.Wrap(err, "getting context user")
}

// Handlers

func (api *proposalApi) query(ctx echo.Context) error {
	usr, err := api.user(ctx)
	if err != nil {
		return err
	}
	var q ProposalQuery
	if err := ctx.Bind(&q); err != nil {
		return ctx.JSON(http.StatusOK, []proposal.Proposal{})
	}
	var ordering Ordering
	ordering.Bind(ctx)

	proposals, err := api.svc.List(ctx.Request().Context(), usr, q.Filter(usr.ID, ordering))
	if err != nil {
		return errors.Wrap(err, "listing proposals")
	}
	if proposals == nil {
		proposals = []proposal.Proposal{}
	}
	return ctx.JSON(http.StatusOK, proposals)
}

func (api *proposalApi) create(ctx echo.Context) error {
	usr, err := api.user(ctx)
	if err != nil {
		return err
	}
	var data proposal.NewProposal
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewProposal")
	}

	p, err := api.svc.Create(ctx.Request().Context(), usr, data)
	if err != nil {
		return errors.Wrap(err, "creating proposal")
	}
	return ctx.JSON(http.StatusCreated, p)
}

func (api *proposalApi) retrieve(ctx echo.Context) error {
	usr, err := api.user(ctx)
	if err != nil {
		return err
	}
	p, err := api.svc.Get(ctx.Request().Context(), usr, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting proposal")
	}
	return ctx.JSON(http.StatusOK, p)
}

func (api *proposalApi) update(ctx echo.Context) error {
	usr, err := api.user(ctx)
	if err != nil {
		return err
	}
	var data proposal.Proposal
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to Proposal")
	}
	data.ID = ctx.Param("id")

	p, err := api.svc.Update(ctx.Request().Context(), usr, data)
	if err != nil {
		return errors.Wrap(err, "updating proposal")
	}
	return ctx.JSON(http.StatusOK, p)
}

func (api *proposalApi) destroy(ctx echo.Context) error {
	usr, err := api.user(ctx)
	if err != nil {
		return err
	}
	if err := api.svc.Delete(ctx.Request().Context(), usr, ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting proposal")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *proposalApi) stepper(ctx echo.Context) error {
	usr, err := api.user(ctx)
	if err != nil {
		return err
	}
	st, err := api.svc.Stepper(ctx.Request().Context(), usr, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "building stepper")
	}
	return ctx.JSON(http.StatusOK, newStepperResponse(st, ctx.QueryParam("path")))
}

func (api *proposalApi) createRevision(ctx echo.Context) error {
	usr, err := api.user(ctx)
	if err != nil {
		return err
	}
	var data RevisionRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to RevisionRequest")
	}

	p, err := api.svc.CreateRevision(ctx.Request().Context(), usr, ctx.Param("id"), data.IsRevision)
	if err != nil {
		return errors.Wrap(err, "creating revision")
	}
	return ctx.JSON(http.StatusCreated, p)
}

func (api *proposalApi) submit(ctx echo.Context) error {
	usr, err := api.user(ctx)
	if err != nil {
		return err
	}
	p, err := api.svc.Submit(ctx.Request().Context(), usr, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "submitting proposal")
	}
	return ctx.JSON(http.StatusOK, p)
}

func (api *proposalApi) supervisorDecide(ctx echo.Context) error {
	usr, err := api.user(ctx)
	if err != nil {
		return err
	}
	var data SupervisorDecisionRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to SupervisorDecisionRequest")
	}

	p, err := api.svc.SupervisorDecide(ctx.Request().Context(), usr, ctx.Param("id"), data.Approved, data.Comments)
	if err != nil {
		return errors.Wrap(err, "recording supervisor decision")
	}
	return ctx.JSON(http.StatusOK, p)
}

func (api *proposalApi) decide(ctx echo.Context) error {
	usr, err := api.user(ctx)
	if err != nil {
		return err
	}
	var data DecisionRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to DecisionRequest")
	}

	p, err := api.svc.Decide(ctx.Request().Context(), usr, ctx.Param("id"), data.Outcome, data.Comments)
	if err != nil {
		return errors.Wrap(err, "recording decision")
	}
	return ctx.JSON(http.StatusOK, p)
}

func (api *proposalApi) pdf(ctx echo.Context) error {
	usr, err := api.user(ctx)
	if err != nil {
		return err
	}
	doc, err := api.svc.Document(ctx.Request().Context(), usr, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "rendering document")
	}
	return ctx.Blob(http.StatusOK, "application/pdf", doc)
}

func (api *proposalApi) diff(ctx echo.Context) error {
	usr, err := api.user(ctx)
	if err != nil {
		return err
	}
	sections, err := api.svc.Diff(ctx.Request().Context(), usr, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "comparing versions")
	}
	return ctx.JSON(http.StatusOK, sections)
}

func (api *proposalApi) slots(ctx echo.Context) error {
	usr, err := api.user(ctx)
	if err != nil {
		return err
	}
	st, err := api.svc.Stepper(ctx.Request().Context(), usr, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "building stepper")
	}

	entries := st.Entries()
	resp := make([]entryResponse, 0, len(entries))
	for _, e := range entries {
		resp = append(resp, newEntryResponse(e))
	}
	return ctx.JSON(http.StatusOK, resp)
}

func (api *proposalApi) attach(ctx echo.Context) error {
	usr, err := api.user(ctx)
	if err != nil {
		return err
	}
	if err := ctx.Request().ParseMultipartForm(maxUploadSize); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid upload").SetInternal(err)
	}
	fh, err := ctx.FormFile("file")
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "file is required").SetInternal(err)
	}

	na := attachment.NewAttachment{
		Kind:     attachment.Kind(ctx.FormValue("kind")),
		Owner:    attachment.Owner{Type: attachment.OwnerType(ctx.FormValue("owner_type")), ID: ctx.FormValue("owner_id")},
		Name:     ctx.FormValue("name"),
		Comments: ctx.FormValue("comments"),
		Replaces: ctx.FormValue("replaces"),
	}

	src, err := fh.Open()
	if err != nil {
		return errors.Wrap(err, "opening upload")
	}
	defer src.Close()

	a, err := api.svc.AttachFile(ctx.Request().Context(), usr, ctx.Param("id"), na, fh.Filename, src)
	if err != nil {
		return errors.Wrap(err, "attaching file")
	}
	return ctx.JSON(http.StatusCreated, a)
}

func (api *proposalApi) detach(ctx echo.Context) error {
	usr, err := api.user(ctx)
	if err != nil {
		return err
	}
	if err := api.svc.Detach(ctx.Request().Context(), usr, ctx.Param("id"), ctx.Param("aid")); err != nil {
		return errors.Wrap(err, "detaching attachment")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *proposalApi) download(ctx echo.Context) error {
	usr, err := api.user(ctx)
	if err != nil {
		return err
	}
	rc, name, err := api.svc.Download(ctx.Request().Context(), usr, ctx.Param("id"), ctx.Param("aid"))
	if err != nil {
		return errors.Wrap(err, "downloading attachment")
	}
	defer rc.Close()

	ctx.Response().Header().Set(echo.HeaderContentDisposition, "attachment; filename*=UTF-8''"+url.PathEscape(name))
	return ctx.Stream(http.StatusOK, echo.MIMEOctetStream, rc)
}

type (
	RevisionRequest struct {
		// IsRevision is false for a plain copy with a new reference.
		IsRevision bool `json:"is_revision"`
	}

	SupervisorDecisionRequest struct {
		Approved bool   `json:"approved"`
		Comments string `json:"comments"`
	}

	DecisionRequest struct {
		Outcome  proposal.Outcome `json:"outcome"`
		Comments string           `json:"comments"`
	}
)

type (
	stepResponse struct {
		Title    string         `json:"title"`
		URL      string         `json:"url"`
		Errors   []string       `json:"errors"`
		Current  bool           `json:"current"`
		Children []stepResponse `json:"children,omitempty"`
	}

	stepperResponse struct {
		Steps      []stepResponse `json:"steps"`
		Current    string         `json:"current,omitempty"`
		Incomplete []string       `json:"incomplete"`
		CanSubmit  bool           `json:"can_submit"`
	}

	slotResponse struct {
		Key         string                 `json:"key"`
		Owner       attachment.Owner       `json:"owner"`
		Kind        attachment.Kind        `json:"kind"`
		Name        string                 `json:"name"`
		Desiredness attachment.Desiredness `json:"desiredness"`
		Attachment  *attachment.Attachment `json:"attachment"`
		Missing     bool                   `json:"missing"`
		IsNew       bool                   `json:"is_new"`
		Comparable  bool                   `json:"comparable"`
	}

	// entryResponse holds a slot or the members of an optionality group.
	entryResponse struct {
		Slot  *slotResponse  `json:"slot,omitempty"`
		Group []slotResponse `json:"group,omitempty"`
	}
)

func newStepperResponse(st *stepper.Stepper, path string) stepperResponse {
	current := st.Current(path)

	var build func(items []*stepper.Item) []stepResponse
	build = func(items []*stepper.Item) []stepResponse {
		out := make([]stepResponse, 0, len(items))
		for _, it := range items {
			errs := it.Errors()
			if errs == nil {
				errs = []string{}
			}
			out = append(out, stepResponse{
				Title:    it.Title,
				URL:      it.URL(),
				Errors:   errs,
				Current:  it == current,
				Children: build(it.Children),
			})
		}
		return out
	}

	resp := stepperResponse{
		Steps:      build(st.Items()),
		Incomplete: []string{},
		CanSubmit:  st.CanSubmit(),
	}
	if current != nil {
		resp.Current = current.Title
	}
	for _, it := range st.Incomplete() {
		resp.Incomplete = append(resp.Incomplete, it.Title)
	}
	return resp
}

func newSlotResponse(s *attachment.Slot) slotResponse {
	key := string(s.Owner.Type) + ":" + s.Owner.ID + ":" + string(s.Kind)
	if s.Order > 0 {
		key += ":" + strconv.Itoa(s.Order)
	}
	return slotResponse{
		Key:         key,
		Owner:       s.Owner,
		Kind:        s.Kind,
		Name:        s.Info().Name,
		Desiredness: s.Desiredness(),
		Attachment:  s.Attachment,
		Missing:     s.Missing(),
		IsNew:       s.IsNew(),
		Comparable:  s.Comparable(),
	}
}

func newEntryResponse(e attachment.Entry) entryResponse {
	if e.Group == nil {
		slot := newSlotResponse(e.Slot)
		return entryResponse{Slot: &slot}
	}
	members := make([]slotResponse, 0, len(e.Group.Members))
	for _, m := range e.Group.Members {
		members = append(members, newSlotResponse(m))
	}
	return entryResponse{Group: members}
}
