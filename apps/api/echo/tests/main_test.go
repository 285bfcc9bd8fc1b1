package tests

import (
	"bytes"
	"encoding/json"
	"log"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/pmezard/go-difflib/difflib"

	echoapi "github.com/tsanzi/ratiba/apps/api/echo"
	"github.com/tsanzi/ratiba/core"
	logsvc "github.com/tsanzi/ratiba/services/logger"
	testutil "github.com/tsanzi/ratiba/tests"
)

func setup(t *testing.T) (*testutil.Env, echoapi.Server) {
	t.Helper()

	env := testutil.NewEnv(t)
	conf := &core.Config{Env: "TEST", TestMode: true, AppName: "Ratiba"}

	logger := logsvc.NewRollbarLogger(log.New(os.Stdout, "TEST : ", log.LstdFlags), conf)
	logger.Enable(false)

	app := echoapi.NewServer(
		echoapi.ServerDeps{
			Conf:           conf,
			Logger:         logger,
			TimetableSvc:   env.TimetableSvc,
			ExamSvc:        env.ExamSvc,
			Validate:       env.Validate,
			Translator:     env.Translator,
			DisableReqLogs: true,
		},
	)
	return env, app
}

func newRequest(method, path string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	var body bytes.Buffer
	if len(data) > 0 {
		body.Write(data[0])
	}
	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	return req, rec
}

func do(t *testing.T, app echoapi.Server, method, path string, data ...[]byte) *httptest.ResponseRecorder {
	t.Helper()
	req, rec := newRequest(method, path, data...)
	app.ServeHTTP(rec, req)
	return rec
}

func marchallObj(t *testing.T, obj interface{}) []byte {
	t.Helper()
	data, err := json.Marshal(obj)
	if err != nil {
		t.Fatalf("marchallObj(): %v", err)
	}
	return data
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	body := make(map[string]interface{})
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decodeBody(): %v (body: %s)", err, rec.Body.String())
	}
	return body
}

func checkCode(t *testing.T, rec *httptest.ResponseRecorder, wantCode int) {
	t.Helper()
	if rec.Code != wantCode {
		t.Fatalf("failed! code = %v; wantCode %v (body: %s)", rec.Code, wantCode, rec.Body.String())
	}
}

func checkCodeAndData(t *testing.T, rec *httptest.ResponseRecorder, wantCode int, wantData []byte) {
	t.Helper()
	checkCode(t, rec, wantCode)

	var got, want interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decoding body: %v (body: %s)", err, rec.Body.String())
	}
	if err := json.Unmarshal(wantData, &want); err != nil {
		t.Fatalf("decoding wantData: %v", err)
	}
	gotPretty, _ := json.MarshalIndent(got, "", "  ")
	wantPretty, _ := json.MarshalIndent(want, "", "  ")
	if !bytes.Equal(gotPretty, wantPretty) {
		diff, _ := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
			A:        difflib.SplitLines(string(wantPretty)),
			B:        difflib.SplitLines(string(gotPretty)),
			FromFile: "want",
			ToFile:   "got",
			Context:  2,
		})
		t.Errorf("failed! data mismatch:\n%s", diff)
	}
}
