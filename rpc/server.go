package rpc

import (
	"context"
	"encoding/binary"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/jacekv/minisol/ledger"
	"github.com/jacekv/minisol/pubkey"
	"github.com/jacekv/minisol/runtime"
)

// airdropRequestLen is the RequestAirdrop payload: 32-byte address plus a
// little-endian u64 amount.
const airdropRequestLen = pubkey.Size + 8

// Server exposes a ledger.Ledger over the Ledger gRPC service.
type Server struct {
	UnimplementedLedgerServer
	Ledger *ledger.Ledger
}

func (s *Server) ledger() (*ledger.Ledger, error) {
	if s == nil || s.Ledger == nil {
		return nil, status.Error(codes.FailedPrecondition, "missing ledger")
	}
	return s.Ledger, nil
}

func (s *Server) GetAccount(ctx context.Context, in *wrapperspb.StringValue) (*wrapperspb.BytesValue, error) {
	_ = ctx
	l, err := s.ledger()
	if err != nil {
		return nil, err
	}
	pk, err := pubkey.FromBase58(in.GetValue())
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	acct, ok := l.GetAccount(pk)
	if !ok {
		return nil, status.Error(codes.NotFound, "account not found")
	}
	return wrapperspb.Bytes(acct.Encode()), nil
}

func (s *Server) GetBalance(ctx context.Context, in *wrapperspb.StringValue) (*wrapperspb.UInt64Value, error) {
	_ = ctx
	l, err := s.ledger()
	if err != nil {
		return nil, err
	}
	pk, err := pubkey.FromBase58(in.GetValue())
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	return wrapperspb.UInt64(l.Balance(pk)), nil
}

func (s *Server) GetMinimumBalanceForRentExemption(ctx context.Context, in *wrapperspb.UInt64Value) (*wrapperspb.UInt64Value, error) {
	_ = ctx
	l, err := s.ledger()
	if err != nil {
		return nil, err
	}
	return wrapperspb.UInt64(l.MinimumBalanceForRentExemption(in.GetValue())), nil
}

func (s *Server) GetLatestBlockhash(ctx context.Context, in *emptypb.Empty) (*wrapperspb.StringValue, error) {
	_, _ = ctx, in
	l, err := s.ledger()
	if err != nil {
		return nil, err
	}
	return wrapperspb.String(l.LatestBlockhash().String()), nil
}

func (s *Server) GetSlot(ctx context.Context, in *emptypb.Empty) (*wrapperspb.UInt64Value, error) {
	_, _ = ctx, in
	l, err := s.ledger()
	if err != nil {
		return nil, err
	}
	return wrapperspb.UInt64(l.Slot()), nil
}

func (s *Server) RequestAirdrop(ctx context.Context, in *wrapperspb.BytesValue) (*wrapperspb.UInt64Value, error) {
	_ = ctx
	l, err := s.ledger()
	if err != nil {
		return nil, err
	}
	b := in.GetValue()
	if len(b) != airdropRequestLen {
		return nil, status.Error(codes.InvalidArgument, "airdrop request must be 40 bytes")
	}
	pk, err := pubkey.FromBytes(b[:pubkey.Size])
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	lamports := binary.LittleEndian.Uint64(b[pubkey.Size:])
	if err := l.RequestAirdrop(pk, lamports); err != nil {
		return nil, mapErr(err)
	}
	return wrapperspb.UInt64(l.Balance(pk)), nil
}

func (s *Server) SendTransaction(ctx context.Context, in *wrapperspb.BytesValue) (*wrapperspb.BytesValue, error) {
	_ = ctx
	return s.process(in, func(l *ledger.Ledger, tx *runtime.Transaction) (*ledger.Result, error) {
		return l.ProcessTransaction(tx)
	})
}

func (s *Server) SimulateTransaction(ctx context.Context, in *wrapperspb.BytesValue) (*wrapperspb.BytesValue, error) {
	_ = ctx
	return s.process(in, func(l *ledger.Ledger, tx *runtime.Transaction) (*ledger.Result, error) {
		return l.SimulateTransaction(tx)
	})
}

func (s *Server) process(in *wrapperspb.BytesValue, run func(*ledger.Ledger, *runtime.Transaction) (*ledger.Result, error)) (*wrapperspb.BytesValue, error) {
	l, err := s.ledger()
	if err != nil {
		return nil, err
	}
	tx, err := runtime.DecodeTransaction(in.GetValue())
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	res, err := run(l, tx)
	if err != nil {
		return nil, mapErr(err)
	}
	st := TxStatus{Signature: res.Signature, Slot: res.Slot, Logs: res.Logs}
	if res.Err != nil {
		st.Err = res.Err.Error()
	}
	return wrapperspb.Bytes(st.Encode()), nil
}
