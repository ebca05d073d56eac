package rpc

import (
	"context"
	"encoding/binary"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/jacekv/minisol/account"
	"github.com/jacekv/minisol/pubkey"
	"github.com/jacekv/minisol/runtime"
)

// Client wraps the Ledger gRPC service in ledger-native types.
type Client struct {
	cc     *grpc.ClientConn
	client LedgerClient

	// Timeout applies per RPC when non-zero.
	Timeout time.Duration
}

type DialOptions struct {
	// Timeout applies to the initial dial when non-zero.
	Timeout time.Duration

	// MaxMsgBytes sets both send/recv max sizes when non-zero.
	MaxMsgBytes int
}

func Dial(target string, opts DialOptions) (*Client, error) {
	dialOpts := []grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	}
	if opts.MaxMsgBytes > 0 {
		dialOpts = append(dialOpts,
			grpc.WithDefaultCallOptions(
				grpc.MaxCallRecvMsgSize(opts.MaxMsgBytes),
				grpc.MaxCallSendMsgSize(opts.MaxMsgBytes),
			),
		)
	}

	ctx := context.Background()
	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	cc, err := grpc.DialContext(ctx, target, dialOpts...)
	if err != nil {
		return nil, err
	}
	return &Client{cc: cc, client: NewLedgerClient(cc), Timeout: 0}, nil
}

// NewClient wraps an existing connection, for in-process transports.
func NewClient(cc *grpc.ClientConn) *Client {
	return &Client{cc: cc, client: NewLedgerClient(cc)}
}

func (c *Client) Close() error {
	if c == nil || c.cc == nil {
		return nil
	}
	return c.cc.Close()
}

// GetAccount fetches the committed account at pk, or ErrNotFound.
func (c *Client) GetAccount(pk pubkey.PublicKey) (*account.Account, error) {
	ctx, cancel := c.ctx()
	defer cancel()
	reply, err := c.client.GetAccount(ctx, wrapperspb.String(pk.String()))
	if err != nil {
		return nil, mapRPC(err)
	}
	return account.Decode(reply.GetValue())
}

// GetBalance fetches the lamport balance, zero for unknown accounts.
func (c *Client) GetBalance(pk pubkey.PublicKey) (uint64, error) {
	ctx, cancel := c.ctx()
	defer cancel()
	reply, err := c.client.GetBalance(ctx, wrapperspb.String(pk.String()))
	if err != nil {
		return 0, mapRPC(err)
	}
	return reply.GetValue(), nil
}

// GetMinimumBalanceForRentExemption prices rent exemption for dataLen
// bytes of account data.
func (c *Client) GetMinimumBalanceForRentExemption(dataLen uint64) (uint64, error) {
	ctx, cancel := c.ctx()
	defer cancel()
	reply, err := c.client.GetMinimumBalanceForRentExemption(ctx, wrapperspb.UInt64(dataLen))
	if err != nil {
		return 0, mapRPC(err)
	}
	return reply.GetValue(), nil
}

// GetLatestBlockhash fetches the blockhash to build new messages with.
func (c *Client) GetLatestBlockhash() (runtime.Hash, error) {
	ctx, cancel := c.ctx()
	defer cancel()
	reply, err := c.client.GetLatestBlockhash(ctx, &emptypb.Empty{})
	if err != nil {
		return runtime.Hash{}, mapRPC(err)
	}
	return runtime.HashFromBase58(reply.GetValue())
}

// GetSlot fetches the current slot.
func (c *Client) GetSlot() (uint64, error) {
	ctx, cancel := c.ctx()
	defer cancel()
	reply, err := c.client.GetSlot(ctx, &emptypb.Empty{})
	if err != nil {
		return 0, mapRPC(err)
	}
	return reply.GetValue(), nil
}

// RequestAirdrop mints lamports into pk and returns the new balance.
func (c *Client) RequestAirdrop(pk pubkey.PublicKey, lamports uint64) (uint64, error) {
	req := make([]byte, airdropRequestLen)
	copy(req, pk[:])
	binary.LittleEndian.PutUint64(req[pubkey.Size:], lamports)

	ctx, cancel := c.ctx()
	defer cancel()
	reply, err := c.client.RequestAirdrop(ctx, wrapperspb.Bytes(req))
	if err != nil {
		return 0, mapRPC(err)
	}
	return reply.GetValue(), nil
}

// SendTransaction submits tx for processing and returns its status.
func (c *Client) SendTransaction(tx *runtime.Transaction) (TxStatus, error) {
	return c.submit(tx, c.client.SendTransaction)
}

// SimulateTransaction runs tx without committing and returns its status.
func (c *Client) SimulateTransaction(tx *runtime.Transaction) (TxStatus, error) {
	return c.submit(tx, c.client.SimulateTransaction)
}

func (c *Client) submit(tx *runtime.Transaction, call func(context.Context, *wrapperspb.BytesValue, ...grpc.CallOption) (*wrapperspb.BytesValue, error)) (TxStatus, error) {
	ctx, cancel := c.ctx()
	defer cancel()
	reply, err := call(ctx, wrapperspb.Bytes(tx.Encode()))
	if err != nil {
		return TxStatus{}, mapRPC(err)
	}
	return DecodeTxStatus(reply.GetValue())
}

func (c *Client) ctx() (context.Context, context.CancelFunc) {
	if c.Timeout <= 0 {
		return context.WithCancel(context.Background())
	}
	return context.WithTimeout(context.Background(), c.Timeout)
}
