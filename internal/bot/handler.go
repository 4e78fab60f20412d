package bot

import (
	"context"
	"fmt"
	"strconv"

	tgbot "github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/sirupsen/logrus"

	"capturevault/internal/config"
	"capturevault/internal/domain"
	"capturevault/internal/search"
)

// maxReplyResults caps the number of results listed in one reply.
const maxReplyResults = 10

// Captures is the part of the capture service the bot uses.
type Captures interface {
	Create(ctx context.Context, c domain.Capture) (*domain.Capture, error)
	ListTags(ctx context.Context) ([]domain.Tag, error)
}

// Searcher runs queries for the user in ctx.
type Searcher interface {
	Search(ctx context.Context, req domain.SearchRequest) (search.Response, error)
}

// sender is the subset of *tgbot.Bot used to reply.
type sender interface {
	SendMessage(ctx context.Context, params *tgbot.SendMessageParams) (*models.Message, error)
}

// Handler holds dependencies for the Telegram bot handlers.
type Handler struct {
	bot      *tgbot.Bot
	sender   sender
	captures Captures
	searcher Searcher
	log      logrus.FieldLogger
}

// NewHandler creates a new bot handler instance.
func NewHandler(cfg config.Config, captures Captures, searcher Searcher, logger logrus.FieldLogger) (*Handler, error) {
	h := newHandler(nil, captures, searcher, logger)

	b, err := tgbot.New(cfg.TelegramBotToken, tgbot.WithDefaultHandler(h.messageHandler))
	if err != nil {
		h.log.WithError(err).Error("Failed to create Telegram bot instance")
		return nil, fmt.Errorf("failed to create bot: %w", err)
	}
	h.bot = b
	h.sender = b

	h.registerHandlers()

	h.log.Info("Telegram bot handler initialized")
	return h, nil
}

func newHandler(s sender, captures Captures, searcher Searcher, logger logrus.FieldLogger) *Handler {
	return &Handler{
		sender:   s,
		captures: captures,
		searcher: searcher,
		log:      logger.WithField("component", "bot_handler"),
	}
}

// registerHandlers sets up the command handlers. Plain messages go to the
// default handler.
func (h *Handler) registerHandlers() {
	h.bot.RegisterHandler(tgbot.HandlerTypeMessageText, "/start", tgbot.MatchTypePrefix, h.startHandler)
	h.bot.RegisterHandler(tgbot.HandlerTypeMessageText, "/search", tgbot.MatchTypePrefix, h.searchHandler)
	h.bot.RegisterHandler(tgbot.HandlerTypeMessageText, "/links", tgbot.MatchTypePrefix, h.linksHandler)
	h.bot.RegisterHandler(tgbot.HandlerTypeMessageText, "/tags", tgbot.MatchTypePrefix, h.tagsHandler)
	h.log.Info("Registered /start, /search, /links and /tags command handlers")
}

// Start begins polling for updates from Telegram.
// This function blocks until the context is cancelled.
func (h *Handler) Start(ctx context.Context) {
	h.log.Info("Starting Telegram bot polling...")
	h.bot.Start(ctx)
	h.log.Info("Telegram bot polling stopped.")
}

// startHandler handles the /start command.
func (h *Handler) startHandler(ctx context.Context, _ *tgbot.Bot, update *models.Update) {
	if update.Message == nil {
		return
	}
	h.reply(ctx, update.Message, welcomeMessage)
}

const welcomeMessage = `Send me a link and I'll save it with a preview.
Add #tags to the message to label it.

/search <query> searches everything you saved
/links <query> searches saved links only
/tags lists your tags`

// messageHandler saves every URL in a plain message as a link capture.
func (h *Handler) messageHandler(ctx context.Context, _ *tgbot.Bot, update *models.Update) {
	msg := update.Message
	if msg == nil || msg.From == nil {
		return
	}
	log := h.log.WithField("user_id", msg.From.ID)

	urls := extractURLs(msg.Text)
	if len(urls) == 0 {
		log.Debug("Message without links ignored")
		h.reply(ctx, msg, "Send me a link to save it, or /start for help.")
		return
	}

	ctx = userContext(ctx, msg.From)
	tags := extractHashtags(msg.Text)
	saved := 0
	for _, u := range urls {
		_, err := h.captures.Create(ctx, domain.Capture{
			Kind: domain.KindLink,
			URL:  u,
			Href: u,
			Tags: tags,
		})
		if err != nil {
			log.WithError(err).WithField("url", u).Warn("Failed to save link")
			continue
		}
		saved++
	}

	switch {
	case saved == 0:
		h.reply(ctx, msg, "Sorry, I couldn't save that.")
	case saved == 1:
		h.reply(ctx, msg, "Saved. The preview will be ready in a moment.")
	default:
		h.reply(ctx, msg, fmt.Sprintf("Saved %d links.", saved))
	}
}

func (h *Handler) searchHandler(ctx context.Context, _ *tgbot.Bot, update *models.Update) {
	h.runSearch(ctx, update, domain.ScopeAll)
}

func (h *Handler) linksHandler(ctx context.Context, _ *tgbot.Bot, update *models.Update) {
	h.runSearch(ctx, update, domain.ScopeLinks)
}

func (h *Handler) runSearch(ctx context.Context, update *models.Update, scope domain.SearchScope) {
	msg := update.Message
	if msg == nil || msg.From == nil {
		return
	}
	query := commandArgs(msg.Text)
	if query == "" && scope == domain.ScopeLinks {
		h.reply(ctx, msg, "Usage: /links <query>")
		return
	}

	resp, err := h.searcher.Search(userContext(ctx, msg.From), domain.SearchRequest{
		Query: query,
		Limit: maxReplyResults,
		Scope: scope,
	})
	if err != nil {
		h.log.WithError(err).WithField("user_id", msg.From.ID).Error("Search failed")
		h.reply(ctx, msg, "Search failed, please try again later.")
		return
	}
	h.reply(ctx, msg, formatResults(resp))
}

func (h *Handler) tagsHandler(ctx context.Context, _ *tgbot.Bot, update *models.Update) {
	msg := update.Message
	if msg == nil || msg.From == nil {
		return
	}
	tags, err := h.captures.ListTags(userContext(ctx, msg.From))
	if err != nil {
		h.log.WithError(err).WithField("user_id", msg.From.ID).Error("Failed to list tags")
		h.reply(ctx, msg, "Couldn't load your tags, please try again later.")
		return
	}
	h.reply(ctx, msg, formatTags(tags))
}

func (h *Handler) reply(ctx context.Context, msg *models.Message, text string) {
	_, err := h.sender.SendMessage(ctx, &tgbot.SendMessageParams{
		ChatID: msg.Chat.ID,
		Text:   text,
	})
	if err != nil {
		h.log.WithError(err).WithField("chat_id", msg.Chat.ID).Error("Failed to send message")
	}
}

// userContext scopes ctx to the Telegram user.
func userContext(ctx context.Context, from *models.User) context.Context {
	return domain.WithUser(ctx, strconv.FormatInt(from.ID, 10))
}
