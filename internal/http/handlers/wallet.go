package handlers

import (
	"io"
	"net/http"
	"time"

	"campusride/internal/domain/models"
	"campusride/internal/http/middleware"
	"campusride/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type rechargeRequest struct {
	Amount decimal.Decimal `json:"amount"`
	Method string          `json:"method"`
}

func (a *API) GetWallet(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	snap, err := a.Wallet.Snapshot(c.Request.Context(), user)
	if err != nil {
		RespondDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, snap)
}

func (a *API) RechargeWallet(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	var req rechargeRequest
	if !BindJSONOrError(c, &req) {
		return
	}
	balance, err := a.Wallet.Recharge(c.Request.Context(), user, req.Amount, req.Method)
	if err != nil {
		RespondDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"balance": balance, "message": "recharge réussie"})
}

// StreamWallet pushes the wallet snapshot as server-sent events: once on
// connect, then after every mutation, with a keep-alive comment in between.
func (a *API) StreamWallet(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()

	// A slow client skips intermediate snapshots; the slot always holds the
	// newest one.
	updates := make(chan models.WalletSnapshot, 1)
	unsubscribe := a.Wallet.Subscribe(user, func(s models.WalletSnapshot) {
		offerLatest(updates, s)
	})
	defer unsubscribe()

	initial, err := a.Wallet.Snapshot(ctx, user)
	if err != nil {
		RespondDomainError(c, err)
		return
	}

	c.Header("Cache-Control", "no-cache")
	c.Header("X-Accel-Buffering", "no")
	c.SSEvent("wallet", initial)
	c.Writer.Flush()

	keepAlive := time.NewTicker(25 * time.Second)
	defer keepAlive.Stop()
	c.Stream(func(w io.Writer) bool {
		select {
		case <-ctx.Done():
			return false
		case s := <-updates:
			c.SSEvent("wallet", s)
			return true
		case <-keepAlive.C:
			_, _ = w.Write([]byte(": ping\n\n"))
			return true
		}
	})
	if a.Logger != nil {
		a.Logger.Debug("wallet stream closed", zap.String("user", user), zap.String("request_id", middleware.GetRequestID(c)))
	}
}

// offerLatest puts s in the one-slot channel ch, replacing any snapshot the
// reader has not taken yet. It never blocks.
func offerLatest(ch chan models.WalletSnapshot, s models.WalletSnapshot) {
	for {
		select {
		case ch <- s:
			return
		default:
		}
		select {
		case <-ch:
		default:
		}
	}
}

func (a *API) WalletStatement(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	pdf, filename, err := a.receipts(middleware.GetRequestID(c)).WalletStatement(c.Request.Context(), user)
	if err != nil {
		RespondDomainError(c, err)
		return
	}
	sendPDF(c, filename, pdf)
}

func (a *API) DeleteWallet(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	if err := a.Wallet.DeleteAccount(c.Request.Context(), user); err != nil {
		RespondDomainError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// VerifyWalletChain audits an owner's transaction chain. Admin only.
func (a *API) VerifyWalletChain(c *gin.Context) {
	snap, err := a.Wallet.Snapshot(c.Request.Context(), c.Param("owner"))
	if err != nil {
		RespondDomainError(c, err)
		return
	}
	if err := services.VerifyWallet(snap); err != nil {
		c.JSON(http.StatusOK, gin.H{"owner": snap.Owner, "consistent": false, "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"owner": snap.Owner, "consistent": true, "balance": snap.Balance, "transactions": len(snap.Transactions)})
}
