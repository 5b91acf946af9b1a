// Copyright 2022 Google LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package zonerpc

import (
	"context"
	"errors"
	"net"

	"golang.org/x/sync/errgroup"

	"github.com/zonerpc/zonerpc/encoding"
	"github.com/zonerpc/zonerpc/internal/net/call"
	"github.com/zonerpc/zonerpc/runtime/codegen"
)

// wireComponent is the fixed (component, method) namespace the five RPC
// operations are registered under on an internal/net/call Connection; the
// actual interface/method being invoked travels inside the payload, not
// in the MethodKey, since a single Connection multiplexes every exported
// object between two zones.
const wireComponent = "zonerpc.transport"

const (
	wireOpSend    = "send"
	wireOpPost    = "post"
	wireOpTryCast = "try_cast"
	wireOpAddRef  = "add_ref"
	wireOpRelease = "release"
)

// WireTransport is a Transport that speaks the five operations over an
// internal/net/call Connection -- a real socket (or pipe, or anything
// else net.Conn can wrap) between two zones in different processes.
type WireTransport struct {
	conn call.Connection
}

// NewWireTransport wraps conn, an already-established connection to the
// destination zone, as a Transport.
func NewWireTransport(conn call.Connection) *WireTransport {
	return &WireTransport{conn: conn}
}

func encodeEnvelope(enc *codegen.Encoder, env Envelope) {
	enc.Uint32(uint32(env.ProtocolVersion))
	enc.Int(int(env.Encoding))
	enc.Len(len(env.BackChannel))
	for _, e := range env.BackChannel {
		enc.Int(int(e.Op))
		enc.Uint64(uint64(e.DestinationZone))
		enc.Uint64(uint64(e.Object))
		enc.Uint64(uint64(e.CallerZone))
		enc.Uint64(uint64(e.KnownDirectionZone))
	}
}

func decodeEnvelope(dec *codegen.Decoder) Envelope {
	env := Envelope{
		ProtocolVersion: ProtocolVersion(dec.Uint32()),
		Encoding:        Encoding(dec.Int()),
	}
	n := dec.Len()
	env.BackChannel = make(BackChannel, n)
	for i := 0; i < n; i++ {
		env.BackChannel[i] = BackChannelEntry{
			Op:                 BackChannelOp(dec.Int()),
			DestinationZone:    DestinationZone(dec.Uint64()),
			Object:             Object(dec.Uint64()),
			CallerZone:         CallerZone(dec.Uint64()),
			KnownDirectionZone: KnownDirectionZone(dec.Uint64()),
		}
	}
	return env
}

// wrapPayload and unwrapPayload apply yas_compressed_binary's gzip framing
// around an already yas_binary-encoded argument or result payload. Every
// other encoding passes data through unchanged: the transport does not
// re-encode payloads for yas_json or protocol_buffers.
func wrapPayload(enc Encoding, data []byte) ([]byte, error) {
	if enc != EncodingYASCompressedBinary {
		return data, nil
	}
	out, err := encoding.CompressBinary(data)
	if err != nil {
		return nil, newError(InvalidEncoding, 0, err)
	}
	return out, nil
}

func unwrapPayload(enc Encoding, data []byte) ([]byte, error) {
	if enc != EncodingYASCompressedBinary {
		return data, nil
	}
	out, err := encoding.DecompressBinary(data)
	if err != nil {
		return nil, newError(InvalidEncoding, 0, err)
	}
	return out, nil
}

func (t *WireTransport) call(ctx context.Context, op string, enc *codegen.Encoder) (*codegen.Decoder, error) {
	key := call.MakeMethodKey(wireComponent, op)
	reply, err := t.conn.Call(ctx, key, enc.Data(), call.CallOptions{Retry: op != wireOpSend && op != wireOpPost})
	if err != nil {
		if ctx.Err() != nil {
			return nil, newError(Timeout, 0, err)
		}
		return nil, newError(TransportError, 0, err)
	}
	return codegen.NewDecoder(reply), nil
}

func (t *WireTransport) Send(ctx context.Context, env Envelope, dest DestinationZone, object Object, method Method, args []byte) ([]byte, Envelope, error) {
	wrapped, err := wrapPayload(env.Encoding, args)
	if err != nil {
		return nil, env, err
	}
	enc := codegen.NewEncoder()
	encodeEnvelope(enc, env)
	enc.Uint64(uint64(dest))
	enc.Uint64(uint64(object))
	enc.Uint32(uint32(method))
	enc.Bytes(wrapped)
	dec, err := t.call(ctx, wireOpSend, enc)
	if err != nil {
		return nil, env, err
	}
	replyEnv := decodeEnvelope(dec)
	reply, err := unwrapPayload(replyEnv.Encoding, dec.Bytes())
	if err != nil {
		return nil, replyEnv, err
	}
	return reply, replyEnv, wireErr(dec, object)
}

func (t *WireTransport) Post(ctx context.Context, env Envelope, dest DestinationZone, object Object, method Method, args []byte) error {
	wrapped, err := wrapPayload(env.Encoding, args)
	if err != nil {
		return err
	}
	enc := codegen.NewEncoder()
	encodeEnvelope(enc, env)
	enc.Uint64(uint64(dest))
	enc.Uint64(uint64(object))
	enc.Uint32(uint32(method))
	enc.Bytes(wrapped)
	_, err = t.call(ctx, wireOpPost, enc)
	return err
}

func (t *WireTransport) TryCast(ctx context.Context, env Envelope, dest DestinationZone, object Object, iface InterfaceOrdinal) (InterfaceDescriptor, Envelope, error) {
	enc := codegen.NewEncoder()
	encodeEnvelope(enc, env)
	enc.Uint64(uint64(dest))
	enc.Uint64(uint64(object))
	enc.Uint64(uint64(iface))
	dec, err := t.call(ctx, wireOpTryCast, enc)
	if err != nil {
		return InterfaceDescriptor{}, env, err
	}
	replyEnv := decodeEnvelope(dec)
	desc := InterfaceDescriptor{DestinationZone: DestinationZone(dec.Uint64()), Object: Object(dec.Uint64())}
	return desc, replyEnv, wireErr(dec, object)
}

func (t *WireTransport) AddRef(ctx context.Context, env Envelope, dest DestinationZone, object Object, caller CallerZone, known KnownDirectionZone, opts AddRefOptions) (Envelope, error) {
	enc := codegen.NewEncoder()
	encodeEnvelope(enc, env)
	enc.Uint64(uint64(dest))
	enc.Uint64(uint64(object))
	enc.Uint64(uint64(caller))
	enc.Uint64(uint64(known))
	enc.Bool(opts.BuildOutParamChannel)
	dec, err := t.call(ctx, wireOpAddRef, enc)
	if err != nil {
		return env, err
	}
	replyEnv := decodeEnvelope(dec)
	return replyEnv, wireErr(dec, object)
}

func (t *WireTransport) Release(ctx context.Context, env Envelope, dest DestinationZone, object Object, caller CallerZone, opts ReleaseOptions) (Envelope, error) {
	enc := codegen.NewEncoder()
	encodeEnvelope(enc, env)
	enc.Uint64(uint64(dest))
	enc.Uint64(uint64(object))
	enc.Uint64(uint64(caller))
	enc.Uint32(opts.Count)
	enc.Bool(opts.LastOnPath)
	dec, err := t.call(ctx, wireOpRelease, enc)
	if err != nil {
		return env, err
	}
	replyEnv := decodeEnvelope(dec)
	return replyEnv, wireErr(dec, object)
}

// encodeErrCode follows an Encoder.Error(err) call with the *Error Code, if
// any, that produced it. codegen.Encoder/Decoder round-trip an arbitrary
// error as a message string when its concrete type isn't registered with
// codegen.RegisterSerializable, which would otherwise turn every *Error
// that crosses a socket into a generic errors.Is(ErrTransportError) on the
// other end; writing the code alongside it lets wireErr reconstruct the
// original *Error so REFERENCE_COUNT_ERROR, OBJECT_NOT_FOUND and friends
// survive the hop.
func encodeErrCode(enc *codegen.Encoder, err error) {
	var zerr *Error
	if !errors.As(err, &zerr) {
		enc.Uint8(0)
		return
	}
	enc.Uint8(1)
	enc.Int(int(zerr.Code))
}

// wireErr decodes the error written by a ServeWire handler (via
// Encoder.Error followed by encodeErrCode) and, if a Code was attached,
// rewraps the decoded error as a *Error carrying it.
func wireErr(dec *codegen.Decoder, object Object) error {
	err := dec.Error()
	hasCode := dec.Uint8()
	if hasCode == 0 || err == nil {
		return err
	}
	return &Error{Code: Code(dec.Int()), Object: object, Wrapped: err}
}

var _ Transport = (*WireTransport)(nil)

// ServeWire registers handlers on hm that dispatch the five wire
// operations to svc. A process hosting svc calls this once per
// HandlerMap before accepting connections; see internal/net/call.ServeOn.
func ServeWire(hm *call.HandlerMap, svc *Service, caller CallerZone) {
	hm.Set(wireComponent, wireOpSend, func(ctx context.Context, args []byte) ([]byte, error) {
		dec := codegen.NewDecoder(args)
		env := decodeEnvelope(dec)
		svc.applyBackChannel(ctx, env)
		dest := DestinationZone(dec.Uint64())
		object := Object(dec.Uint64())
		method := Method(dec.Uint32())
		payload, err := unwrapPayload(env.Encoding, dec.Bytes())
		if err != nil {
			return nil, err
		}
		reply, dispatchErr := svc.Dispatch(ctx, dest, object, caller, method, payload)
		wrapped, err := wrapPayload(env.Encoding, reply)
		if err != nil {
			return nil, err
		}
		enc := codegen.NewEncoder()
		encodeEnvelope(enc, env)
		enc.Bytes(wrapped)
		enc.Error(dispatchErr)
		encodeErrCode(enc, dispatchErr)
		return enc.Data(), nil
	})
	hm.Set(wireComponent, wireOpPost, func(ctx context.Context, args []byte) ([]byte, error) {
		dec := codegen.NewDecoder(args)
		env := decodeEnvelope(dec)
		svc.applyBackChannel(ctx, env)
		dest := DestinationZone(dec.Uint64())
		object := Object(dec.Uint64())
		method := Method(dec.Uint32())
		payload, err := unwrapPayload(env.Encoding, dec.Bytes())
		if err != nil {
			return nil, err
		}
		_ = svc.DispatchAsync(ctx, dest, object, caller, method, payload, func([]byte, error) {})
		enc := codegen.NewEncoder()
		encodeEnvelope(enc, env)
		enc.Error(nil)
		encodeErrCode(enc, nil)
		return enc.Data(), nil
	})
	hm.Set(wireComponent, wireOpTryCast, func(ctx context.Context, args []byte) ([]byte, error) {
		dec := codegen.NewDecoder(args)
		env := decodeEnvelope(dec)
		svc.applyBackChannel(ctx, env)
		dest := DestinationZone(dec.Uint64())
		object := Object(dec.Uint64())
		iface := InterfaceOrdinal(dec.Uint64())
		desc, err := svc.TryCast(ctx, dest, object, iface)
		enc := codegen.NewEncoder()
		encodeEnvelope(enc, env)
		enc.Uint64(uint64(desc.DestinationZone))
		enc.Uint64(uint64(desc.Object))
		enc.Error(err)
		encodeErrCode(enc, err)
		return enc.Data(), nil
	})
	hm.Set(wireComponent, wireOpAddRef, func(ctx context.Context, args []byte) ([]byte, error) {
		dec := codegen.NewDecoder(args)
		env := decodeEnvelope(dec)
		svc.applyBackChannel(ctx, env)
		dest := DestinationZone(dec.Uint64())
		object := Object(dec.Uint64())
		addrefCaller := CallerZone(dec.Uint64())
		known := KnownDirectionZone(dec.Uint64())
		opts := AddRefOptions{BuildOutParamChannel: dec.Bool()}
		err := svc.AddRef(ctx, dest, object, addrefCaller, known, opts)
		enc := codegen.NewEncoder()
		encodeEnvelope(enc, env)
		enc.Error(err)
		encodeErrCode(enc, err)
		return enc.Data(), nil
	})
	hm.Set(wireComponent, wireOpRelease, func(ctx context.Context, args []byte) ([]byte, error) {
		dec := codegen.NewDecoder(args)
		env := decodeEnvelope(dec)
		svc.applyBackChannel(ctx, env)
		dest := DestinationZone(dec.Uint64())
		object := Object(dec.Uint64())
		relCaller := CallerZone(dec.Uint64())
		opts := ReleaseOptions{Count: dec.Uint32(), LastOnPath: dec.Bool()}
		err := svc.Release(ctx, dest, object, relCaller, opts)
		enc := codegen.NewEncoder()
		encodeEnvelope(enc, env)
		enc.Error(err)
		encodeErrCode(enc, err)
		return enc.Data(), nil
	})
}

// ListenAndServe accepts connections on every listener in lis and serves
// svc's wire operations (attributed to caller) on each, until ctx is
// canceled or one listener's Accept loop fails, at which point it cancels
// the rest and returns the first error. One Service can be reached over
// several listeners at once (e.g. a Unix socket for local peers and a TCP
// socket for remote ones); this supervises that fixed set the way the
// teacher supervises one server per exported component.
func ListenAndServe(ctx context.Context, lis []net.Listener, svc *Service, caller CallerZone, opts call.ServerOptions) error {
	hm := call.NewHandlerMap()
	ServeWire(hm, svc, caller)

	servers, ctx := errgroup.WithContext(ctx)
	for _, l := range lis {
		l := call.FixedListener(l, hm)
		servers.Go(func() error {
			return call.Serve(ctx, l, opts)
		})
	}
	return servers.Wait()
}
