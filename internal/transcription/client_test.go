package transcription_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"pos-voice-relay/internal/logger"
	"pos-voice-relay/internal/transcription"
	"pos-voice-relay/internal/types"
)

type captured struct {
	path, auth, model, language, filename, audio string
}

func TestClient_Transcribe(t *testing.T) {
	Convey("Given a fake transcription endpoint", t, func() {
		var got captured
		status := http.StatusOK
		reply := `{"text":"buen servicio"}`
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got.path = r.URL.Path
			got.auth = r.Header.Get("Authorization")
			if err := r.ParseMultipartForm(1 << 20); err == nil {
				got.model = r.FormValue("model")
				got.language = r.FormValue("language")
				if f, hdr, err := r.FormFile("file"); err == nil {
					got.filename = hdr.Filename
					b, _ := io.ReadAll(f)
					got.audio = string(b)
					f.Close()
				}
			}
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(status)
			_, _ = w.Write([]byte(reply))
		}))
		defer srv.Close()

		c := transcription.NewClient(srv.Client(), transcription.Options{
			BaseURL: srv.URL + "/v1/",
			APIKey:  "sk-test",
		}, logger.Discard())

		Convey("When transcribing", func() {
			text, err := c.Transcribe(context.Background(), strings.NewReader("ID3audio"), "abc.mp3", "es")

			Convey("Then the upload is a whisper multipart request", func() {
				So(err, ShouldBeNil)
				So(text, ShouldEqual, "buen servicio")
				So(got.path, ShouldEqual, "/v1/audio/transcriptions")
				So(got.auth, ShouldEqual, "Bearer sk-test")
				So(got.model, ShouldEqual, "whisper-1")
				So(got.language, ShouldEqual, "es")
				So(got.filename, ShouldEqual, "abc.mp3")
				So(got.audio, ShouldEqual, "ID3audio")
			})
		})

		Convey("When the service rejects the request", func() {
			status = http.StatusUnauthorized
			reply = `{"error":{"message":"Incorrect API key provided","type":"invalid_request_error"}}`
			_, err := c.Transcribe(context.Background(), strings.NewReader("x"), "a.mp3", "es")

			Convey("Then the error payload is propagated unchanged", func() {
				var up *types.UpstreamError
				So(errors.As(err, &up), ShouldBeTrue)
				So(up.StatusCode, ShouldEqual, http.StatusUnauthorized)
				So(string(up.Payload), ShouldEqual, reply)
			})
		})

		Convey("When the service returns invalid JSON", func() {
			reply = `not json`
			_, err := c.Transcribe(context.Background(), strings.NewReader("x"), "a.mp3", "")

			Convey("Then a decode error is returned", func() {
				So(err, ShouldNotBeNil)
				So(err.Error(), ShouldContainSubstring, "json decode error")
			})
		})
	})
}
