package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/adstudio/backend/internal/entitlement"
	"github.com/adstudio/backend/internal/logging"
	"github.com/adstudio/backend/internal/models"
)

const (
	defaultHistoryLimit = 10
	maxHistoryLimit     = 100
)

// DownloadHandler runs downloads through the entitlement ledger.
type DownloadHandler struct {
	Ledger    DownloadLedger
	Downloads DownloadStore
	// Signer is optional; without it the stored file location is returned.
	Signer URLSigner
	URLTTL time.Duration
}

type downloadResponse struct {
	Download           models.Download `json:"download"`
	URL                string          `json:"url"`
	Unlimited          bool            `json:"unlimited"`
	DownloadsRemaining *int            `json:"downloadsRemaining,omitempty"`
}

type deniedResponse struct {
	Error              string `json:"error"`
	Code               string `json:"code"`
	DownloadsRemaining int    `json:"downloadsRemaining"`
	UpgradeURL         string `json:"upgradeUrl"`
}

// Download handles POST /api/v1/videos/{id}/download.
func (h DownloadHandler) Download(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.FromContext(ctx)
	p, ok := principal(w, r)
	if !ok {
		return
	}

	receipt, err := h.Ledger.AuthorizeAndRecordDownload(ctx, p.AccountID, r.PathValue("id"))
	switch {
	case err == nil:
	case errors.Is(err, entitlement.ErrAllowanceExhausted):
		respondJSON(ctx, w, http.StatusForbidden, deniedResponse{
			Error:              "Download limit reached. Upgrade your plan to keep downloading.",
			Code:               "allowance_exhausted",
			DownloadsRemaining: receipt.Account.DownloadsRemaining,
			UpgradeURL:         "/api/v1/plans",
		})
		return
	case errors.Is(err, entitlement.ErrTrialExpired):
		respondJSON(ctx, w, http.StatusForbidden, deniedResponse{
			Error:              "Your trial has ended. Choose a plan to keep downloading.",
			Code:               "trial_expired",
			DownloadsRemaining: receipt.Account.DownloadsRemaining,
			UpgradeURL:         "/api/v1/plans",
		})
		return
	case errors.Is(err, entitlement.ErrVideoNotFound):
		respondError(ctx, w, http.StatusNotFound, "video not found")
		return
	case errors.Is(err, entitlement.ErrAccountNotFound):
		respondError(ctx, w, http.StatusUnauthorized, "invalid credentials")
		return
	default:
		logger.Error("download failed", "error", err)
		respondError(ctx, w, http.StatusInternalServerError, "download failed, please try again")
		return
	}

	var location string
	if receipt.Download.Video != nil {
		location = receipt.Download.Video.FileURL
	}
	url := location
	if h.Signer != nil && location != "" {
		url, err = h.Signer.SignURL(ctx, location, h.URLTTL)
		if err != nil {
			// The download has already been recorded at this point.
			logger.Error("sign download url failed", "download_id", receipt.Download.ID, "error", err)
			respondError(ctx, w, http.StatusBadGateway, "download recorded but the file link could not be created")
			return
		}
	}

	resp := downloadResponse{Download: receipt.Download, URL: url, Unlimited: receipt.Unlimited}
	if !receipt.Unlimited {
		remaining := receipt.Account.DownloadsRemaining
		resp.DownloadsRemaining = &remaining
	}
	respondJSON(ctx, w, http.StatusOK, resp)
}

// List handles GET /api/v1/downloads?limit=.
func (h DownloadHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	p, ok := principal(w, r)
	if !ok {
		return
	}

	limit, err := queryLimit(r, defaultHistoryLimit, maxHistoryLimit)
	if err != nil {
		respondError(ctx, w, http.StatusBadRequest, err.Error())
		return
	}

	downloads, err := h.Downloads.ListRecent(ctx, p.AccountID, limit)
	if err != nil {
		logging.FromContext(ctx).Error("list downloads failed", "error", err)
		respondError(ctx, w, http.StatusInternalServerError, "unable to load downloads")
		return
	}
	if downloads == nil {
		downloads = []models.Download{}
	}
	respondJSON(ctx, w, http.StatusOK, map[string]any{"downloads": downloads})
}
