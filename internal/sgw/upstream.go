package sgw

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"
)

// upstreamParams carries the fixed audio parameters and feature
// toggles sent as query parameters to the cloud speech endpoint, per
// spec.md §4.4/§6.
type upstreamParams struct {
	Token          string
	Language       string
	InterimResults bool
	Punctuate      bool
	SmartFormat    bool
	Diarize        bool
}

// dialUpstream opens the streaming connection and returns the raw
// websocket conn. Authorization is via a bearer-style header rather
// than a query parameter, per spec.md §6.
func dialUpstream(ctx context.Context, baseURL string, p upstreamParams) (netConnCloser, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("sgw: parse upstream URL: %w", err)
	}
	q := u.Query()
	q.Set("encoding", "linear16")
	q.Set("sample_rate", "16000")
	q.Set("interim_results", strconv.FormatBool(p.InterimResults))
	q.Set("punctuate", strconv.FormatBool(p.Punctuate))
	q.Set("smart_format", strconv.FormatBool(p.SmartFormat))
	q.Set("diarize", strconv.FormatBool(p.Diarize))
	if p.Language != "" {
		q.Set("language", p.Language)
	}
	u.RawQuery = q.Encode()

	dialer := ws.Dialer{}
	if p.Token != "" {
		dialer.Header = ws.HandshakeHeaderHTTP(http.Header{
			"Authorization": {"Bearer " + p.Token},
		})
	}
	conn, _, _, err := dialer.Dial(ctx, u.String())
	if err != nil {
		return nil, fmt.Errorf("sgw: dial upstream: %w", err)
	}
	return conn, nil
}

// netConnCloser is the minimal surface sessions need from the
// websocket connection; declared narrowly so tests can substitute a
// fake without pulling in a real socket.
type netConnCloser interface {
	Write(p []byte) (int, error)
	Read(p []byte) (int, error)
	Close() error
}

func writeUpstreamBinary(conn netConnCloser, payload []byte) error {
	return wsutil.WriteClientBinary(conn, payload)
}

func readUpstreamText(conn netConnCloser) ([]byte, error) {
	return wsutil.ReadServerText(conn)
}
