package handlers

import (
	"context"
	"errors"
	"net/http"

	"coldreach/internal/database"
	"coldreach/internal/models"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

// CampaignResolver resolves the natural key of a campaign before a stage
// is enqueued.
type CampaignResolver interface {
	GetUserByUsername(ctx context.Context, username string) (*models.User, error)
	GetCampaign(ctx context.Context, userID int64, name string) (*models.Campaign, error)
}

// StageRunner runs campaign stages. Busy reports whether a stage currently
// holds the campaign.
type StageRunner interface {
	Scrape(ctx context.Context, username, campaignName string) error
	Generate(ctx context.Context, username, campaignName string) error
	Send(ctx context.Context, username, campaignName string) error
	Analyze(ctx context.Context, username, campaignName string) error
	Run(ctx context.Context, username, campaignName string) error
	GenerateAndSend(ctx context.Context, username, campaignName string) error
	Busy(campaignID int64) bool
}

// ScrapeLeadsHandler triggers the lead-scraping stage in the background.
func ScrapeLeadsHandler(store CampaignResolver, runner StageRunner, logger zerolog.Logger) echo.HandlerFunc {
	return campaignTask(store, runner, "Lead scraping", runner.Scrape, logger)
}

// GenerateEmailsHandler triggers the email-generation stage in the background.
func GenerateEmailsHandler(store CampaignResolver, runner StageRunner, logger zerolog.Logger) echo.HandlerFunc {
	return campaignTask(store, runner, "Email generation", runner.Generate, logger)
}

// SendEmailsHandler triggers the sending stage in the background.
func SendEmailsHandler(store CampaignResolver, runner StageRunner, logger zerolog.Logger) echo.HandlerFunc {
	return campaignTask(store, runner, "Email sending", runner.Send, logger)
}

// AnalyzeRepliesHandler triggers the reply-analysis stage in the background.
func AnalyzeRepliesHandler(store CampaignResolver, runner StageRunner, logger zerolog.Logger) echo.HandlerFunc {
	return campaignTask(store, runner, "Reply analysis", runner.Analyze, logger)
}

// RunCampaignHandler triggers the full scrape-generate-send-analyze pipeline
// in the background.
func RunCampaignHandler(store CampaignResolver, runner StageRunner, logger zerolog.Logger) echo.HandlerFunc {
	return campaignTask(store, runner, "Full campaign run", runner.Run, logger)
}

// GenerateAndSendHandler triggers generation followed by sending in the
// background.
func GenerateAndSendHandler(store CampaignResolver, runner StageRunner, logger zerolog.Logger) echo.HandlerFunc {
	return campaignTask(store, runner, "Email generation and sending", runner.GenerateAndSend, logger)
}

// campaignTask validates the request, resolves the campaign and enqueues the
// stage. The response returns immediately; the stage outcome lands on the
// campaign status and in the logs.
func campaignTask(store CampaignResolver, runner StageRunner, taskName string, run func(context.Context, string, string) error, logger zerolog.Logger) echo.HandlerFunc {
	return func(c echo.Context) error {
		var req models.CampaignRequest
		if err := c.Bind(&req); err != nil {
			return c.JSON(http.StatusBadRequest, models.TaskResponse{
				Status: "error",
				Error:  "Invalid request body",
			})
		}
		if req.Username == "" || req.CampaignName == "" {
			return c.JSON(http.StatusBadRequest, models.TaskResponse{
				Status: "error",
				Error:  "username and campaign_name are required",
			})
		}

		ctx := c.Request().Context()
		user, err := store.GetUserByUsername(ctx, req.Username)
		if err != nil {
			if errors.Is(err, database.ErrNotFound) {
				return c.JSON(http.StatusNotFound, models.TaskResponse{
					Status: "error",
					Error:  "User not found",
				})
			}
			return err
		}
		campaign, err := store.GetCampaign(ctx, user.ID, req.CampaignName)
		if err != nil {
			if errors.Is(err, database.ErrNotFound) {
				return c.JSON(http.StatusNotFound, models.TaskResponse{
					Status: "error",
					Error:  "Campaign not found",
				})
			}
			return err
		}

		if runner.Busy(campaign.ID) {
			return c.JSON(http.StatusConflict, models.TaskResponse{
				Status: "error",
				Error:  "A task is already running for this campaign",
			})
		}

		go func() {
			// The request context dies when the response is written,
			// so background work runs detached.
			if err := run(context.Background(), req.Username, req.CampaignName); err != nil {
				logger.Error().
					Err(err).
					Str("task", taskName).
					Str("username", req.Username).
					Str("campaign", req.CampaignName).
					Msg("Background task failed")
			}
		}()

		return c.JSON(http.StatusAccepted, models.TaskResponse{
			Status:  "started",
			Message: taskName + " started",
		})
	}
}
