package httptransport

import (
	"context"
	"crypto/sha256"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/CommandOSSLabs/personal-data-wallet-sub010/internal/blob"
	"github.com/CommandOSSLabs/personal-data-wallet-sub010/internal/decryption"
	"github.com/CommandOSSLabs/personal-data-wallet-sub010/internal/identity"
	"github.com/CommandOSSLabs/personal-data-wallet-sub010/internal/session"
	"github.com/CommandOSSLabs/personal-data-wallet-sub010/internal/threshold"
	"github.com/CommandOSSLabs/personal-data-wallet-sub010/internal/wallet"
	"github.com/CommandOSSLabs/personal-data-wallet-sub010/pkg/domain"
	dErrors "github.com/CommandOSSLabs/personal-data-wallet-sub010/pkg/domain-errors"
	"github.com/CommandOSSLabs/personal-data-wallet-sub010/pkg/platform/httputil"
	"github.com/CommandOSSLabs/personal-data-wallet-sub010/pkg/platform/sentinel"
	"github.com/CommandOSSLabs/personal-data-wallet-sub010/pkg/requestcontext"
)

// Pipeline is the decryption service the gateway fronts.
type Pipeline interface {
	DecryptOne(ctx context.Context, req decryption.Request) (*decryption.Result, error)
	DecryptBatch(ctx context.Context, reqs []decryption.Request) *decryption.BatchResult
	SessionKey(ctx context.Context, address domain.Address) (*session.Key, error)
	Challenge(ctx context.Context, address domain.Address) (*session.Key, error)
	Stats() decryption.Stats
}

// Sessions is the part of the session manager the signature endpoint needs.
type Sessions interface {
	Get(ctx context.Context, address domain.Address, packageID domain.ObjectID) (*session.Key, error)
	SetSignatureBase64(ctx context.Context, key *session.Key, signature string) error
	SweepExpired(ctx context.Context) (int, error)
}

type Encrypter interface {
	Encrypt(ctx context.Context, id []byte, plaintext []byte) (*threshold.EncryptResult, error)
}

// TokenIssuer mints caller tokens for wallets that signed a session challenge.
type TokenIssuer interface {
	GenerateCallerToken(address domain.Address, packageID domain.ObjectID, expiresAt time.Time) (string, error)
}

// Handler serves the gateway API.
type Handler struct {
	pipeline  Pipeline
	sessions  Sessions
	encrypter Encrypter
	encoder   *identity.Encoder
	blobs     blob.Store
	tokens    TokenIssuer
	logger    *slog.Logger
}

func NewHandler(pipeline Pipeline, sessions Sessions, encrypter Encrypter, encoder *identity.Encoder, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		pipeline:  pipeline,
		sessions:  sessions,
		encrypter: encrypter,
		encoder:   encoder,
		logger:    logger,
	}
}

// WithBlobStore enables storing ciphertexts on encryption.
func (h *Handler) WithBlobStore(s blob.Store) *Handler {
	h.blobs = s
	return h
}

// WithTokens enables access tokens on signature submission.
func (h *Handler) WithTokens(t TokenIssuer) *Handler {
	h.tokens = t
	return h
}

// HandleCreateSession handles POST /v1/sessions. It returns the wallet's
// current key, or a challenge to sign. It never issues a caller token: tokens
// only come back from a verified signature submission.
func (h *Handler) HandleCreateSession(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[SessionRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	caller, authed := requestcontext.Caller(ctx)
	if authed && caller != req.Address {
		httputil.WriteError(w, dErrors.New(dErrors.CodeForbidden, "cannot open a session for another wallet"))
		return
	}

	// With tokens on, the gateway signs with a wallet it holds only for that
	// wallet's authenticated caller.
	sessionKey := h.pipeline.SessionKey
	if h.tokens != nil && !authed {
		sessionKey = h.pipeline.Challenge
	}
	key, err := sessionKey(ctx, req.Address)
	if err != nil {
		h.logger.WarnContext(ctx, "session key unavailable",
			"request_id", requestID,
			"address", req.Address,
			"error", err,
		)
		httputil.WriteError(w, toSessionError(err))
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toSessionResponse(key))
}

// HandleSubmitSignature handles POST /v1/sessions/signature.
func (h *Handler) HandleSubmitSignature(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[SignatureRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	key, err := h.sessions.Get(ctx, req.Address, h.encoder.PackageID())
	if err != nil {
		httputil.WriteError(w, toSessionError(err))
		return
	}
	if err := h.sessions.SetSignatureBase64(ctx, key, req.Signature); err != nil {
		h.logger.WarnContext(ctx, "session signature rejected",
			"request_id", requestID,
			"address", req.Address,
			"error", err,
		)
		httputil.WriteError(w, toSessionError(err))
		return
	}
	resp := toSessionResponse(key)
	resp.AccessToken = h.token(ctx, key)
	httputil.WriteJSON(w, http.StatusOK, resp)
}

func (h *Handler) token(ctx context.Context, key *session.Key) string {
	if h.tokens == nil {
		return ""
	}
	token, err := h.tokens.GenerateCallerToken(key.Address, key.PackageID, key.ExpiresAt())
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to issue caller token",
			"request_id", requestcontext.RequestID(ctx),
			"error", err,
		)
		return ""
	}
	return token
}

// HandleDecrypt handles POST /v1/decrypt.
func (h *Handler) HandleDecrypt(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[DecryptRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	if err := bindCaller(ctx, req); err != nil {
		httputil.WriteError(w, err)
		return
	}

	res, err := h.pipeline.DecryptOne(ctx, req.toModel())
	if err != nil {
		h.logger.InfoContext(ctx, "decrypt request failed",
			"request_id", requestID,
			"memory_id", req.MemoryID,
			"kind", decryption.Classify(err),
		)
		httputil.WriteError(w, toDecryptError(err))
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toDecryptResponse(*res))
}

// HandleDecryptBatch handles POST /v1/decrypt/batch. Item failures are
// reported in the body; the response is 200 whenever the batch ran.
func (h *Handler) HandleDecryptBatch(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[BatchRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	reqs := make([]decryption.Request, 0, len(req.Requests))
	for i := range req.Requests {
		if err := bindCaller(ctx, &req.Requests[i]); err != nil {
			httputil.WriteError(w, err)
			return
		}
		reqs = append(reqs, req.Requests[i].toModel())
	}
	httputil.WriteJSON(w, http.StatusOK, toBatchResponse(h.pipeline.DecryptBatch(ctx, reqs)))
}

// HandleEncrypt handles POST /v1/encrypt.
func (h *Handler) HandleEncrypt(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[EncryptRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	if caller, ok := requestcontext.Caller(ctx); ok && caller != req.Identity.Owner {
		httputil.WriteError(w, dErrors.New(dErrors.CodeForbidden, "identity owner must be the caller"))
		return
	}
	if req.Store && h.blobs == nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodePreconditionFailed, "blob storage is not configured"))
		return
	}

	id, _ := req.Identity.ToIdentity()
	idBytes, err := h.encoder.Encode(id)
	if err != nil {
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeValidation, "invalid identity"))
		return
	}
	res, err := h.encrypter.Encrypt(ctx, idBytes, req.Plaintext)
	if err != nil {
		h.logger.ErrorContext(ctx, "encryption failed", "request_id", requestID, "error", err)
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeInternal, "encryption failed"))
		return
	}

	sum := sha256.Sum256(req.Plaintext)
	resp := EncryptResponse{Identity: idBytes, ContentHash: sum[:], BackupKey: res.BackupKey}
	if req.Store {
		blobID, err := h.blobs.Put(ctx, res.Ciphertext)
		if err != nil {
			h.logger.ErrorContext(ctx, "blob upload failed", "request_id", requestID, "error", err)
			httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeUnavailable, "blob upload failed"))
			return
		}
		resp.BlobID = blobID
	} else {
		resp.Ciphertext = res.Ciphertext
	}
	h.logger.InfoContext(ctx, "content encrypted",
		"request_id", requestID,
		"identity", id.String(),
		"result", res,
	)
	httputil.WriteJSON(w, http.StatusCreated, resp)
}

// HandleStats handles GET /v1/stats.
func (h *Handler) HandleStats(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, h.pipeline.Stats())
}

// HandleSweepSessions handles POST /v1/admin/sessions/sweep.
func (h *Handler) HandleSweepSessions(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	n, err := h.sessions.SweepExpired(ctx)
	if err != nil {
		h.logger.ErrorContext(ctx, "session sweep failed",
			"request_id", requestcontext.RequestID(ctx),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, SweepResponse{Removed: n})
}

// bindCaller defaults the request's user to the authenticated caller and
// refuses requests made on behalf of another wallet.
func bindCaller(ctx context.Context, req *DecryptRequest) error {
	caller, ok := requestcontext.Caller(ctx)
	if !ok {
		if req.UserAddress.IsZero() {
			return dErrors.New(dErrors.CodeValidation, "user_address is required")
		}
		return nil
	}
	if req.UserAddress.IsZero() {
		req.UserAddress = caller
		return nil
	}
	if req.UserAddress != caller {
		return dErrors.New(dErrors.CodeForbidden, "cannot decrypt on behalf of another wallet")
	}
	return nil
}

func toSessionError(err error) error {
	switch {
	case errors.Is(err, session.ErrSignatureRejected):
		return dErrors.Wrap(err, dErrors.CodeUnauthorized, "signature rejected")
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.Wrap(err, dErrors.CodeNotFound, "no session for address")
	case errors.Is(err, wallet.ErrUnknownAddress), errors.Is(err, session.ErrWalletMismatch):
		return dErrors.Wrap(err, dErrors.CodeForbidden, "wallet not available")
	default:
		return err
	}
}

func toDecryptError(err error) error {
	kind := decryption.Classify(err)
	msg := string(kind)
	switch kind {
	case decryption.KindInvalidRequest, decryption.KindInvalidIdentity, decryption.KindMalformed:
		return dErrors.Wrap(err, dErrors.CodeValidation, msg)
	case decryption.KindNotFound:
		return dErrors.Wrap(err, dErrors.CodeNotFound, msg)
	case decryption.KindSignatureNotSet:
		return dErrors.Wrap(err, dErrors.CodePreconditionFailed, "session key is not signed")
	case decryption.KindSignatureRejected:
		return dErrors.Wrap(err, dErrors.CodeUnauthorized, msg)
	case decryption.KindThresholdNotMet:
		return dErrors.Wrap(err, dErrors.CodeAccessDenied, "access denied by key servers")
	case decryption.KindIntegrity:
		return dErrors.Wrap(err, dErrors.CodeIntegrity, msg)
	case decryption.KindTimeout, decryption.KindCanceled:
		return dErrors.Wrap(err, dErrors.CodeTimeout, msg)
	case decryption.KindTransientNetwork:
		return dErrors.Wrap(err, dErrors.CodeUnavailable, msg)
	default:
		return err
	}
}
