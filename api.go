package main

import (
	"net/http"

	"github.com/CodedInternet/gorecoater/onboard/axis"
	errs "github.com/CodedInternet/gorecoater/onboard/errors"
	"github.com/CodedInternet/gorecoater/onboard/motion"
	"github.com/CodedInternet/gorecoater/onboard/nanotec"
	"github.com/go-chi/chi"
	"github.com/go-chi/render"
	"github.com/sirupsen/logrus"
)

// Device is what the API serves, implemented by onboard.Recoater.
type Device interface {
	AxisNames() []string
	Info(name string) (motion.Info, error)
	Command(name string) (*motion.Command, error)
	StartMotion(name string, cmd motion.Command) error
	StopMotion(name string) error
	State(name string) (nanotec.State, error)
	Gripper(name string) (*axis.GripperAxis, error)
	Blade(name string) (axis.Blade, error)
}

type API struct {
	Device Device
	log    *logrus.Entry
}

func (api *API) Routes(r chi.Router) {
	r.Route("/api", func(r chi.Router) {
		r.Get("/axes", api.ListAxes)
		r.Route("/axes/{name}", func(r chi.Router) {
			r.Get("/", api.GetAxis)
			r.Get("/command", api.GetCommand)
			r.Put("/command", api.StartMotion)
			r.Delete("/command", api.StopMotion)
			r.Get("/state", api.GetState)
			r.Get("/gripper", api.GetGripper)
			r.Put("/gripper", api.SetGripper)
		})
		r.Route("/blades/{name}", func(r chi.Router) {
			r.Get("/", api.GetBlade)
			r.Put("/command", api.StartBlade)
			r.Delete("/command", api.StopBlade)
		})
	})
}

//---
// Payloads
//---

// CommandPayload is a motion command in its flat form.
type CommandPayload map[string]interface{}

func (p *CommandPayload) Bind(r *http.Request) error {
	return nil
}

type GripperPayload struct {
	State bool `json:"state"`
}

func (g *GripperPayload) Bind(r *http.Request) error {
	return nil
}

type AxisResponse struct {
	Name string `json:"name"`
	motion.Info
	Command map[string]interface{} `json:"command"`
}

type BladeResponse struct {
	Name    string                 `json:"name"`
	Screws  []axis.ScrewInfo       `json:"screws"`
	Command map[string]interface{} `json:"command"`
}

type StateResponse struct {
	State string `json:"state"`
}

func flat(cmd *motion.Command) map[string]interface{} {
	if cmd == nil {
		return nil
	}
	return cmd.ToMap()
}

//---
// Errors
//---

type ErrResponse struct {
	Err            error `json:"-"`
	HTTPStatusCode int   `json:"-"`

	StatusText string `json:"status"`
	ErrorText  string `json:"error,omitempty"`
}

func (e *ErrResponse) Render(w http.ResponseWriter, r *http.Request) error {
	render.Status(r, e.HTTPStatusCode)
	return nil
}

// ErrRender answers with the status code matching the kind of err.
func ErrRender(err error) render.Renderer {
	code := errs.StatusCode(err)
	return &ErrResponse{
		Err:            err,
		HTTPStatusCode: code,
		StatusText:     http.StatusText(code),
		ErrorText:      err.Error(),
	}
}

func ErrInvalidRequest(err error) render.Renderer {
	return &ErrResponse{
		Err:            err,
		HTTPStatusCode: http.StatusBadRequest,
		StatusText:     "Invalid request.",
		ErrorText:      err.Error(),
	}
}

func (api *API) fail(w http.ResponseWriter, r *http.Request, err error) {
	if errs.StatusCode(err) == http.StatusInternalServerError {
		api.log.WithError(err).WithField("path", r.URL.Path).Error("request failed")
	}
	render.Render(w, r, ErrRender(err))
}

//---
// Views
//---

func (api *API) ListAxes(w http.ResponseWriter, r *http.Request) {
	names := api.Device.AxisNames()
	axes := make([]AxisResponse, 0, len(names))
	for _, name := range names {
		resp, err := api.axis(name)
		if err != nil {
			api.fail(w, r, err)
			return
		}
		axes = append(axes, resp)
	}
	render.JSON(w, r, axes)
}

func (api *API) axis(name string) (resp AxisResponse, err error) {
	resp.Name = name
	if resp.Info, err = api.Device.Info(name); err != nil {
		return
	}
	cmd, err := api.Device.Command(name)
	resp.Command = flat(cmd)
	return
}

func (api *API) GetAxis(w http.ResponseWriter, r *http.Request) {
	resp, err := api.axis(chi.URLParam(r, "name"))
	if err != nil {
		api.fail(w, r, err)
		return
	}
	render.JSON(w, r, resp)
}

func (api *API) GetCommand(w http.ResponseWriter, r *http.Request) {
	cmd, err := api.Device.Command(chi.URLParam(r, "name"))
	if err != nil {
		api.fail(w, r, err)
		return
	}
	render.JSON(w, r, flat(cmd))
}

func bindCommand(r *http.Request) (motion.Command, error) {
	payload := CommandPayload{}
	if err := render.Bind(r, &payload); err != nil {
		return motion.Command{}, err
	}
	return motion.CommandFromMap(payload)
}

func (api *API) StartMotion(w http.ResponseWriter, r *http.Request) {
	cmd, err := bindCommand(r)
	if err != nil {
		render.Render(w, r, ErrInvalidRequest(err))
		return
	}
	if err = api.Device.StartMotion(chi.URLParam(r, "name"), cmd); err != nil {
		api.fail(w, r, err)
		return
	}
	render.Status(r, http.StatusAccepted)
	render.JSON(w, r, cmd.ToMap())
}

func (api *API) StopMotion(w http.ResponseWriter, r *http.Request) {
	if err := api.Device.StopMotion(chi.URLParam(r, "name")); err != nil {
		api.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (api *API) GetState(w http.ResponseWriter, r *http.Request) {
	state, err := api.Device.State(chi.URLParam(r, "name"))
	if err != nil {
		api.fail(w, r, err)
		return
	}
	render.JSON(w, r, StateResponse{State: state.String()})
}

func (api *API) GetGripper(w http.ResponseWriter, r *http.Request) {
	g, err := api.Device.Gripper(chi.URLParam(r, "name"))
	if err != nil {
		api.fail(w, r, err)
		return
	}
	closed, err := g.Gripper()
	if err != nil {
		api.fail(w, r, err)
		return
	}
	render.JSON(w, r, GripperPayload{State: closed})
}

func (api *API) SetGripper(w http.ResponseWriter, r *http.Request) {
	data := &GripperPayload{}
	if err := render.Bind(r, data); err != nil {
		render.Render(w, r, ErrInvalidRequest(err))
		return
	}

	g, err := api.Device.Gripper(chi.URLParam(r, "name"))
	if err != nil {
		api.fail(w, r, err)
		return
	}
	if err = g.SetGripper(data.State); err != nil {
		api.fail(w, r, err)
		return
	}
	render.JSON(w, r, data)
}

func (api *API) GetBlade(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	blade, err := api.Device.Blade(name)
	if err != nil {
		api.fail(w, r, err)
		return
	}
	screws, err := blade.Info()
	if err != nil {
		api.fail(w, r, err)
		return
	}
	render.JSON(w, r, BladeResponse{Name: name, Screws: screws, Command: flat(blade.Command())})
}

func (api *API) StartBlade(w http.ResponseWriter, r *http.Request) {
	cmd, err := bindCommand(r)
	if err != nil {
		render.Render(w, r, ErrInvalidRequest(err))
		return
	}
	blade, err := api.Device.Blade(chi.URLParam(r, "name"))
	if err != nil {
		api.fail(w, r, err)
		return
	}
	if err = blade.StartMotion(cmd); err != nil {
		api.fail(w, r, err)
		return
	}
	render.Status(r, http.StatusAccepted)
	render.JSON(w, r, cmd.ToMap())
}

func (api *API) StopBlade(w http.ResponseWriter, r *http.Request) {
	blade, err := api.Device.Blade(chi.URLParam(r, "name"))
	if err != nil {
		api.fail(w, r, err)
		return
	}
	if err = blade.StopMotion(); err != nil {
		api.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
