package main

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/CodedInternet/gorecoater/onboard"
	"github.com/go-chi/chi"
	"github.com/sirupsen/logrus"
	. "github.com/smartystreets/goconvey/convey"
)

type memoryStore map[string]float64

func (m memoryStore) LoadPosition(key string) (float64, bool, error) {
	p, ok := m[key]
	return p, ok, nil
}

func (m memoryStore) SavePosition(key string, position float64) error {
	m[key] = position
	return nil
}

func discardLog() *logrus.Entry {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return logrus.NewEntry(log)
}

func testRecoater() *onboard.Recoater {
	config := onboard.RecoaterConfig{
		Boards: map[string]onboard.BoardConfig{"pss": {Transport: "serial", Device: "/dev/null"}},
		Drives: map[string]onboard.DriveConfig{
			"drum0": {Type: onboard.DriveBldc, Host: "10.0.0.11", MaxSpeed: 30, MaxAbsDistance: 10000, Blade: "blade0"},
			"z": {Type: onboard.DriveStepper, Host: "10.0.0.12", MaxSpeed: 10, MaxAbsDistance: 120,
				Gripper: &onboard.GripperConfig{Host: "10.0.0.20", Register: 42}},
			"blade0_left": {Type: onboard.DriveScrew, Board: "pss", StepsPerRev: 200, MicrostepsPerStep: 16,
				MicronPerRev: 2000, MaxAbsDistance: 1000},
			"leveler": {Type: onboard.DriveExternal, MinAbsDistance: 10, MaxAbsDistance: 90},
		},
		Blades: map[string][]string{"blade0": {"blade0_left"}},
	}

	r, err := onboard.NewRecoater(config, memoryStore{}, true, discardLog())
	So(err, ShouldBeNil)
	return r
}

func serve(handler http.Handler, method, path, body string) (*httptest.ResponseRecorder, map[string]interface{}) {
	var reader io.Reader
	if len(body) > 0 {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	var data map[string]interface{}
	json.Unmarshal(rec.Body.Bytes(), &data)
	return rec, data
}

func TestAPI(t *testing.T) {
	Convey("Given the API of an offline recoater", t, func() {
		recoater := testRecoater()
		defer recoater.Close()

		r := chi.NewRouter()
		api := &API{Device: recoater, log: discardLog()}
		api.Routes(r)

		Convey("axes are listed in name order", func() {
			rec, _ := serve(r, "GET", "/api/axes", "")
			So(rec.Code, ShouldEqual, http.StatusOK)

			var axes []AxisResponse
			So(json.Unmarshal(rec.Body.Bytes(), &axes), ShouldBeNil)
			So(axes, ShouldHaveLength, 4)
			So(axes[0].Name, ShouldEqual, "blade0_left")
			So(axes[0].Position, ShouldEqual, 300)
		})

		Convey("a motion is accepted and reported", func() {
			rec, data := serve(r, "PUT", "/api/axes/leveler/command", `{"mode": "absolute", "distance": 42, "speed": 2}`)
			So(rec.Code, ShouldEqual, http.StatusAccepted)
			So(data["mode"], ShouldEqual, "absolute")

			rec, data = serve(r, "GET", "/api/axes/leveler", "")
			So(rec.Code, ShouldEqual, http.StatusOK)
			So(data["position"], ShouldEqual, 42)
			So(data["command"].(map[string]interface{})["distance"], ShouldEqual, 42)

			rec, data = serve(r, "GET", "/api/axes/leveler/command", "")
			So(data["speed"], ShouldEqual, 2)

			rec, _ = serve(r, "DELETE", "/api/axes/leveler/command", "")
			So(rec.Code, ShouldEqual, http.StatusNoContent)

			rec, _ = serve(r, "GET", "/api/axes/leveler/command", "")
			So(strings.TrimSpace(rec.Body.String()), ShouldEqual, "null")
		})

		Convey("errors carry their status code", func() {
			rec, data := serve(r, "PUT", "/api/axes/leveler/command", `{"mode": "sideways", "speed": 2}`)
			So(rec.Code, ShouldEqual, http.StatusBadRequest)
			So(data["error"], ShouldEqual, "wrong motion mode")

			rec, _ = serve(r, "PUT", "/api/axes/leveler/command", `{"mode": "absolute", "distance": 500, "speed": 2}`)
			So(rec.Code, ShouldEqual, http.StatusBadRequest)

			rec, _ = serve(r, "PUT", "/api/axes/leveler/command", `{"mode": "speed", "speed": 2}`)
			So(rec.Code, ShouldEqual, http.StatusBadRequest)

			rec, _ = serve(r, "PUT", "/api/axes/missing/command", `{"mode": "relative", "distance": 1, "speed": 1}`)
			So(rec.Code, ShouldEqual, http.StatusNotFound)

			rec, _ = serve(r, "PUT", "/api/axes/leveler/command", `not json`)
			So(rec.Code, ShouldEqual, http.StatusBadRequest)
		})

		Convey("the drum waits for its blade", func() {
			rec, _ := serve(r, "PUT", "/api/blades/blade0/command", `{"mode": "absolute", "distance": 50, "speed": 1}`)
			So(rec.Code, ShouldEqual, http.StatusAccepted)

			rec, data := serve(r, "GET", "/api/blades/blade0", "")
			So(rec.Code, ShouldEqual, http.StatusOK)
			So(data["screws"], ShouldHaveLength, 1)

			rec, _ = serve(r, "PUT", "/api/axes/drum0/command", `{"mode": "speed", "speed": 5}`)
			So(rec.Code, ShouldEqual, http.StatusConflict)

			rec, _ = serve(r, "DELETE", "/api/blades/blade0/command", "")
			So(rec.Code, ShouldEqual, http.StatusNoContent)

			rec, _ = serve(r, "GET", "/api/blades/nope", "")
			So(rec.Code, ShouldEqual, http.StatusNotFound)
		})

		Convey("drive state and gripper are exposed", func() {
			rec, data := serve(r, "GET", "/api/axes/drum0/state", "")
			So(rec.Code, ShouldEqual, http.StatusOK)
			So(data["state"], ShouldEqual, "SwitchedOn")

			rec, _ = serve(r, "GET", "/api/axes/leveler/state", "")
			So(rec.Code, ShouldEqual, http.StatusConflict)

			rec, data = serve(r, "PUT", "/api/axes/z/gripper", `{"state": true}`)
			So(rec.Code, ShouldEqual, http.StatusOK)
			So(data["state"], ShouldEqual, true)

			rec, data = serve(r, "GET", "/api/axes/z/gripper", "")
			So(rec.Code, ShouldEqual, http.StatusOK)
			So(data["state"], ShouldEqual, false)

			rec, _ = serve(r, "GET", "/api/axes/drum0/gripper", "")
			So(rec.Code, ShouldEqual, http.StatusNotFound)
		})
	})
}

func TestParseMotion(t *testing.T) {
	Convey("Shell arguments become commands", t, func() {
		name, cmd, err := parseMotion([]string{"z", "relative", "-2.5", "4"})
		So(err, ShouldBeNil)
		So(name, ShouldEqual, "z")
		So(cmd.Distance, ShouldEqual, -2.5)
		So(cmd.Speed, ShouldEqual, 4)

		_, cmd, err = parseMotion([]string{"z", "homing", "3"})
		So(err, ShouldBeNil)
		So(cmd.Speed, ShouldEqual, 3)
		So(cmd.Distance, ShouldEqual, 0)

		_, _, err = parseMotion([]string{"z", "absolute", "3"})
		So(err, ShouldNotBeNil)
		_, _, err = parseMotion([]string{"z", "turns", "3"})
		So(err, ShouldNotBeNil)
		_, _, err = parseMotion([]string{"z", "relative", "x", "3"})
		So(err, ShouldNotBeNil)
		_, _, err = parseMotion([]string{"z"})
		So(err, ShouldNotBeNil)
	})
}
