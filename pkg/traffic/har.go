package traffic

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
)

// harLog is the subset of a HAR 1.2 document that carries JSON exchanges.
type harLog struct {
	Log struct {
		Version string     `json:"version"`
		Creator harCreator `json:"creator"`
		Entries []harEntry `json:"entries"`
	} `json:"log"`
}

type harCreator struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

type harEntry struct {
	StartedDateTime string      `json:"startedDateTime,omitempty"`
	Request         harRequest  `json:"request"`
	Response        harResponse `json:"response"`
}

type harRequest struct {
	Method   string       `json:"method"`
	URL      string       `json:"url"`
	PostData *harPostData `json:"postData,omitempty"`
}

type harPostData struct {
	MimeType string `json:"mimeType"`
	Text     string `json:"text"`
}

type harResponse struct {
	Status  int        `json:"status"`
	Content harContent `json:"content"`
}

type harContent struct {
	MimeType string `json:"mimeType"`
	Text     string `json:"text"`
	Encoding string `json:"encoding,omitempty"`
}

// LoadHAR reads a HAR capture from path. See ReadHAR.
func LoadHAR(path string) ([]Entry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ReadHAR(f)
}

// ReadHAR converts a HAR capture into entries. Only successful POST exchanges
// to recognized endpoints with JSON bodies are kept, in capture order.
func ReadHAR(r io.Reader) ([]Entry, error) {
	var doc harLog
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode har: %w", err)
	}

	var out []Entry
	for i, h := range doc.Log.Entries {
		if h.Request.Method != http.MethodPost || h.Response.Status >= http.StatusBadRequest {
			continue
		}
		e := Entry{URL: h.Request.URL}
		if !recognized[e.Endpoint()] {
			continue
		}
		if h.Request.PostData != nil && h.Request.PostData.Text != "" {
			if err := json.Unmarshal([]byte(h.Request.PostData.Text), &e.Request); err != nil {
				return nil, fmt.Errorf("har entry %d: request body: %w", i, err)
			}
		}
		if h.Response.Content.Encoding != "" {
			return nil, fmt.Errorf("har entry %d: unsupported content encoding %q", i, h.Response.Content.Encoding)
		}
		if strings.TrimSpace(h.Response.Content.Text) != "" {
			if err := json.Unmarshal([]byte(h.Response.Content.Text), &e.Response); err != nil {
				return nil, fmt.Errorf("har entry %d: response body: %w", i, err)
			}
		}
		out = append(out, e)
	}
	return out, nil
}

// WriteHAR writes entries as a HAR 1.2 document.
func WriteHAR(w io.Writer, entries []Entry, creator string) error {
	var doc harLog
	doc.Log.Version = "1.2"
	doc.Log.Creator = harCreator{Name: creator, Version: "1"}
	doc.Log.Entries = make([]harEntry, 0, len(entries))
	for _, e := range entries {
		req, err := json.Marshal(e.Request)
		if err != nil {
			return err
		}
		resp, err := json.Marshal(e.Response)
		if err != nil {
			return err
		}
		doc.Log.Entries = append(doc.Log.Entries, harEntry{
			Request: harRequest{
				Method:   http.MethodPost,
				URL:      e.URL,
				PostData: &harPostData{MimeType: "application/json", Text: string(req)},
			},
			Response: harResponse{
				Status:  http.StatusOK,
				Content: harContent{MimeType: "application/json", Text: string(resp)},
			},
		})
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(doc)
}
