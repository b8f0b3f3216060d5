// Package serve implements the NDJSON rewrite protocol over a pair of
// streams, typically stdin and stdout.
package serve

import (
	"bufio"
	"context"
	"encoding/json"
	"io"

	"github.com/praetorian-inc/securelink/pkg/publisher"
	"github.com/praetorian-inc/securelink/pkg/rewriter"
)

// Version is the server protocol version
const Version = "1.0.0"

// Rewriter is the document rewriter the server drives.
type Rewriter interface {
	Rewrite(ctx context.Context, html string) (*rewriter.Result, error)
}

// Server manages the streaming rewriter
type Server struct {
	rw      Rewriter
	encoder *json.Encoder
	decoder *json.Decoder
}

// NewServer creates a new streaming server
func NewServer(rw Rewriter, in io.Reader, out io.Writer) *Server {
	enc := json.NewEncoder(out)
	enc.SetEscapeHTML(false)
	return &Server{
		rw:      rw,
		encoder: enc,
		decoder: json.NewDecoder(bufio.NewReader(in)),
	}
}

// Run starts the server main loop
func (s *Server) Run(ctx context.Context) error {
	// Send ready signal
	s.sendReady()

	// Use buffered channels for incoming requests
	reqChan := make(chan Request, 1)
	errChan := make(chan error, 1)

	go func() {
		for {
			var req Request
			if err := s.decoder.Decode(&req); err != nil {
				errChan <- err
				return
			}
			select {
			case reqChan <- req:
			case <-ctx.Done():
				return
			}
		}
	}()

	// Process requests until stdin closes or context cancels
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-errChan:
			// Drain any pending requests before handling EOF
			for {
				select {
				case req := <-reqChan:
					if s.processRequest(ctx, req) {
						return nil
					}
				default:
					// No more pending requests
					if err == io.EOF {
						return nil
					}
					s.sendError("decode", err.Error())
					return nil
				}
			}
		case req := <-reqChan:
			if s.processRequest(ctx, req) {
				return nil
			}
		}
	}
}

// processRequest handles a single request and returns true if the server should exit
func (s *Server) processRequest(ctx context.Context, req Request) bool {
	switch req.Type {
	case "rewrite":
		s.handleRewrite(ctx, req.Payload)
	case "rewrite_batch":
		s.handleRewriteBatch(ctx, req.Payload)
	case "close":
		return true
	default:
		s.sendError("unknown", "unknown request type: "+req.Type)
	}
	return false
}

func (s *Server) sendReady() {
	data, _ := json.Marshal(ReadyData{Version: Version})
	s.encoder.Encode(Response{
		Success: true,
		Type:    "ready",
		Data:    data,
	})
}

func (s *Server) rewrite(ctx context.Context, p RewritePayload) (*rewriter.Result, error) {
	if p.Source != "" {
		ctx = publisher.ContextWithSource(ctx, p.Source)
	}
	return s.rw.Rewrite(ctx, p.HTML)
}

func (s *Server) handleRewrite(ctx context.Context, payload json.RawMessage) {
	var p RewritePayload
	if err := json.Unmarshal(payload, &p); err != nil {
		s.sendError("rewrite", err.Error())
		return
	}

	result, err := s.rewrite(ctx, p)
	if err != nil {
		s.sendError("rewrite", err.Error())
		return
	}

	s.sendData("rewrite", newRewriteData(p.Source, result))
}

// handleRewriteBatch rewrites every item. One failing item does not fail
// the batch; its error is reported in place of its result.
func (s *Server) handleRewriteBatch(ctx context.Context, payload json.RawMessage) {
	var p RewriteBatchPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		s.sendError("rewrite_batch", err.Error())
		return
	}

	out := BatchData{Results: make([]RewriteData, 0, len(p.Items))}
	for _, item := range p.Items {
		result, err := s.rewrite(ctx, item)
		if err != nil {
			out.Results = append(out.Results, RewriteData{Source: item.Source, Error: err.Error()})
			continue
		}
		out.Results = append(out.Results, newRewriteData(item.Source, result))
	}

	s.sendData("rewrite_batch", out)
}

func (s *Server) sendData(reqType string, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		s.sendError(reqType, err.Error())
		return
	}
	s.encoder.Encode(Response{
		Success: true,
		Type:    reqType,
		Data:    data,
	})
}

func (s *Server) sendError(reqType, msg string) {
	s.encoder.Encode(Response{
		Success: false,
		Type:    reqType,
		Error:   msg,
	})
}
