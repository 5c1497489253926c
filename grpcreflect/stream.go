package grpcreflect

import (
	"context"
	"io"

	"google.golang.org/grpc/codes"
	refv1 "google.golang.org/grpc/reflection/grpc_reflection_v1"
	"google.golang.org/grpc/status"
)

// maxAttempts is how many times a request is sent before giving up.
const maxAttempts = 3

// send performs one request/response exchange on the reflection stream. A
// broken stream is replaced and the request retried. Responses that carry an
// error are returned as status errors.
func (cr *Client) send(req *refv1.ServerReflectionRequest) (*refv1.ServerReflectionResponse, error) {
	// one request in flight at a time, so responses match their requests
	cr.connMu.Lock()
	defer cr.connMu.Unlock()

	for attempt := 1; ; attempt++ {
		if err := cr.openStreamLocked(); err != nil {
			return nil, err
		}
		resp, err := cr.exchangeLocked(req)
		if err == nil {
			if errResp := resp.GetErrorResponse(); errResp != nil {
				return nil, status.Error(codes.Code(errResp.ErrorCode), errResp.ErrorMessage)
			}
			return resp, nil
		}
		cr.resetLocked()
		if attempt >= maxAttempts {
			return nil, err
		}
		if !cr.useV1Alpha && shouldFallBack(err) {
			cr.useV1Alpha = true
		}
	}
}

// shouldFallBack reports whether a failed v1 exchange means the server only
// speaks v1alpha. Some servers close the stream without a status when the
// service is unknown, which surfaces as UNAVAILABLE rather than
// UNIMPLEMENTED (https://github.com/fullstorydev/grpcurl/issues/434).
func shouldFallBack(err error) bool {
	code := status.Code(err)
	return code == codes.Unimplemented || code == codes.Unavailable
}

func (cr *Client) exchangeLocked(req *refv1.ServerReflectionRequest) (*refv1.ServerReflectionResponse, error) {
	if err := cr.stream.Send(req); err != nil {
		if err == io.EOF {
			// the real error is only available from Recv
			_, err = cr.stream.Recv()
		}
		return nil, err
	}
	return cr.stream.Recv()
}

// openStreamLocked starts a stream unless one is open. Once the server has
// turned v1 down, the client stays on v1alpha.
func (cr *Client) openStreamLocked() error {
	if cr.stream != nil {
		return nil
	}
	ctx, cancel := context.WithCancel(cr.ctx)
	if !cr.useV1Alpha {
		stream, err := cr.stubV1.ServerReflectionInfo(ctx)
		if err == nil {
			cr.stream, cr.cancel = stream, cancel
			return nil
		}
		if status.Code(err) != codes.Unimplemented {
			cancel()
			return err
		}
		cr.useV1Alpha = true
	}
	stream, err := cr.stubV1Alpha.ServerReflectionInfo(ctx)
	if err != nil {
		cancel()
		return err
	}
	cr.stream, cr.cancel = adaptStreamFromV1Alpha{stream}, cancel
	return nil
}

// Reset closes the active stream, if any. The next request opens a new one.
func (cr *Client) Reset() {
	cr.connMu.Lock()
	defer cr.connMu.Unlock()
	cr.resetLocked()
}

func (cr *Client) resetLocked() {
	if cr.stream != nil {
		_ = cr.stream.CloseSend()
		// drain until the server finishes, io.EOF included
		for {
			if _, err := cr.stream.Recv(); err != nil {
				break
			}
		}
		cr.stream = nil
	}
	if cr.cancel != nil {
		cr.cancel()
		cr.cancel = nil
	}
}
