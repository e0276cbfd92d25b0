package http

import (
	"testing"

	"github.com/searchktools/fast-socket/core/buffer"
	"github.com/searchktools/fast-socket/core/pipeline"
)

type captured struct {
	method, path, body string
}

func feed(t *testing.T, chunks ...string) ([]captured, pipeline.Result) {
	t.Helper()

	var got []captured
	p := pipeline.New[*Request](pipeline.HandlerFunc[*Request](func(req *Request) {
		got = append(got, captured{req.Method, req.Path, string(req.Body)})
		ReleaseRequest(req)
	}), NewFilter())

	var r pipeline.Result
	for _, c := range chunks {
		r = p.Process(buffer.NewChunk([]byte(c), 0, len(c)))
		if r.State == pipeline.Error {
			break
		}
	}
	return got, r
}

const pipelined = "GET /a HTTP/1.1\r\nHost: x\r\n\r\n" +
	"POST /b HTTP/1.1\r\nContent-Length: 5\r\n\r\nhello" +
	"GET /c HTTP/1.1\r\n\r\n"

func TestFilterPipelinedRequests(t *testing.T) {
	got, r := feed(t, pipelined)
	if r.State != pipeline.Completed {
		t.Errorf("Expected Completed, got %v", r.State)
	}

	want := []captured{{"GET", "/a", ""}, {"POST", "/b", "hello"}, {"GET", "/c", ""}}
	if len(got) != len(want) {
		t.Fatalf("Expected %d requests, got %+v", len(want), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Request %d: expected %+v, got %+v", i, want[i], got[i])
		}
	}
}

func TestFilterSplitAnywhere(t *testing.T) {
	for i := 1; i < len(pipelined); i++ {
		got, r := feed(t, pipelined[:i], pipelined[i:])
		if r.State == pipeline.Error {
			t.Fatalf("Split at %d: %s", i, r.Message)
		}
		if len(got) != 3 || got[1].body != "hello" || got[2].path != "/c" {
			t.Fatalf("Split at %d: unexpected requests %+v", i, got)
		}
	}
}

func TestFilterByteByByte(t *testing.T) {
	chunks := make([]string, len(pipelined))
	for i := range pipelined {
		chunks[i] = pipelined[i : i+1]
	}

	got, _ := feed(t, chunks...)
	if len(got) != 3 || got[1].body != "hello" {
		t.Errorf("Unexpected requests %+v", got)
	}
}

func TestFilterBodyPending(t *testing.T) {
	got, r := feed(t, "PUT /x HTTP/1.1\r\nContent-Length: 10\r\n\r\n01234")
	if len(got) != 0 {
		t.Errorf("Expected no request before the body is complete, got %+v", got)
	}
	if r.State != pipeline.Cached {
		t.Errorf("Expected Cached, got %v", r.State)
	}
}

func TestFilterInvalidHeader(t *testing.T) {
	_, r := feed(t, "NOT A REQUEST LINE\r\n\r\n")
	if r.State != pipeline.Error {
		t.Errorf("Expected Error, got %v", r.State)
	}
}
