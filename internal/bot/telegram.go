package bot

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"hivesnaps-media/internal"
	"hivesnaps-media/internal/asset"
	"hivesnaps-media/internal/attach"
	"hivesnaps-media/internal/embed"
	"hivesnaps-media/internal/logging"
)

// TelegramBot is the interactive front-end of the attach coordinator: send a
// video to start an attach, inline buttons for cancel/retry/remove, explicit
// confirmation before destructive actions.
type TelegramBot struct {
	tg         *tgbotapi.BotAPI
	coord      *attach.Coordinator
	resolver   *embed.Resolver
	audio      *embed.AudioNormalizer
	cfg        internal.Config
	log        *logging.Logger
	errorsPath string

	// chat that owns the current attach; progress edits go there
	sessionMu   sync.Mutex
	sessionChat int64
	statusMsgID int
	lastBucket  int

	// pending confirmation prompt, if any
	confirmMu sync.Mutex
	confirmCh chan bool
}

func NewTelegramBot(cfg internal.Config, log *logging.Logger, errorsPath string) (*TelegramBot, error) {
	if cfg.TelegramToken == "" {
		return nil, errors.New("TELEGRAM_BOT_TOKEN is empty")
	}
	api, err := tgbotapi.NewBotAPI(cfg.TelegramToken)
	if err != nil {
		return nil, err
	}
	api.Debug = false
	return &TelegramBot{
		tg:         api,
		resolver:   embed.NewResolver(cfg.FallbackMediaURL, log),
		audio:      embed.NewAudioNormalizer(0, true, log),
		cfg:        cfg,
		log:        log,
		errorsPath: errorsPath,
	}, nil
}

// SetCoordinator wires the coordinator after construction; the bot is also
// the coordinator's Confirmer, so the two are built in two steps.
func (b *TelegramBot) SetCoordinator(c *attach.Coordinator) {
	b.coord = c
}

func (b *TelegramBot) Run(ctx context.Context) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 30
	updates := b.tg.GetUpdatesChan(u)
	b.log.Infof("telegram bot started as @%s", b.tg.Self.UserName)

	for {
		select {
		case <-ctx.Done():
			b.tg.StopReceivingUpdates()
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			b.handleUpdate(ctx, update)
		}
	}
}

func (b *TelegramBot) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	if update.CallbackQuery != nil {
		b.handleCallback(ctx, update.CallbackQuery)
		return
	}
	if update.Message == nil {
		return
	}
	msg := update.Message
	chatID := msg.Chat.ID

	if fileID, fileName := incomingVideo(msg); fileID != "" {
		go b.runAttach(ctx, chatID, fileID, fileName)
		return
	}

	switch msg.Command() {
	case "start", "help":
		b.replyText(chatID, "Send me a video to attach it to the draft.\n"+
			"/state — current attach state\n"+
			"/cancel — cancel the running upload\n"+
			"/retry — retry a failed upload\n"+
			"/remove — remove the attached video\n"+
			"/embed <url> — resolve playback metadata\n"+
			"/audio <url> — compacted audio player document\n"+
			"/errors — tail errors.log")
	case "state":
		b.replyText(chatID, describe(b.coord.State()))
	case "cancel":
		b.coord.Cancel()
	case "retry":
		go func() {
			if err := b.coord.Retry(context.WithoutCancel(ctx)); err != nil {
				b.replyText(chatID, fmt.Sprintf("❌ retry: %v", err))
			}
		}()
	case "remove":
		go b.coord.Remove(context.WithoutCancel(ctx))
	case "embed":
		ref := msg.CommandArguments()
		if ref == "" {
			b.replyText(chatID, "Usage: /embed <url>")
			return
		}
		go b.sendEmbedInfo(context.WithoutCancel(ctx), chatID, ref)
	case "audio":
		ref := msg.CommandArguments()
		if ref == "" {
			b.replyText(chatID, "Usage: /audio <url>")
			return
		}
		go b.sendAudioDoc(context.WithoutCancel(ctx), chatID, ref)
	case "errors":
		b.sendErrorsTail(chatID)
	}
}

func (b *TelegramBot) handleCallback(ctx context.Context, cb *tgbotapi.CallbackQuery) {
	// Always answer so the client stops the spinner
	b.tg.Request(tgbotapi.NewCallback(cb.ID, ""))
	chatID := cb.Message.Chat.ID

	switch cb.Data {
	case "attach_cancel":
		b.coord.Cancel()
	case "attach_retry":
		go func() {
			if err := b.coord.Retry(context.WithoutCancel(ctx)); err != nil {
				b.replyText(chatID, fmt.Sprintf("❌ retry: %v", err))
			}
		}()
	case "attach_remove":
		go b.coord.Remove(context.WithoutCancel(ctx))
	case "confirm_yes", "confirm_no":
		b.confirmMu.Lock()
		ch := b.confirmCh
		b.confirmCh = nil
		b.confirmMu.Unlock()
		if ch != nil {
			ch <- cb.Data == "confirm_yes"
		}
	}
}

// runAttach downloads the sent video to a temp file and drives the attach
// flow, reporting the outcome back to the chat.
func (b *TelegramBot) runAttach(ctx context.Context, chatID int64, fileID, fileName string) {
	path, err := b.downloadToTemp(ctx, fileID, fileName)
	if err != nil {
		b.log.Errorf("bot: download failed: %v", err)
		b.replyText(chatID, fmt.Sprintf("❌ Could not download the video: %v", err))
		return
	}

	b.sessionMu.Lock()
	b.sessionChat = chatID
	b.statusMsgID = 0
	b.lastBucket = -1
	b.sessionMu.Unlock()

	err = b.coord.AttachPath(context.WithoutCancel(ctx), path)
	switch {
	case errors.Is(err, attach.ErrBusy):
		b.replyText(chatID, "⚠️ A video is already attached. /remove it first.")
	case errors.Is(err, asset.ErrPermissionDenied):
		b.replyText(chatID, "❌ Source access denied.")
	case err != nil:
		// Failure already reflected in state; StateChanged posted it.
		b.log.Error(err)
	}
}

// StateChanged is the coordinator's OnChange listener: it keeps one status
// message per attach edited in place.
func (b *TelegramBot) StateChanged(s attach.Snapshot) {
	b.sessionMu.Lock()
	chatID := b.sessionChat
	b.sessionMu.Unlock()
	if chatID == 0 {
		return
	}

	switch {
	case s.Uploading && s.Progress != nil:
		// Edit at most once per 10% bucket to stay under rate limits
		bucket := int(s.Progress.Percentage / 10)
		b.sessionMu.Lock()
		skip := bucket == b.lastBucket
		b.lastBucket = bucket
		b.sessionMu.Unlock()
		if !skip {
			b.upsertStatus(chatID, fmt.Sprintf("⬆️ Uploading… %.0f%%", s.Progress.Percentage), uploadingKeyboard())
		}
	case s.AssetID != "":
		b.upsertStatus(chatID, fmt.Sprintf("✅ Video attached: %s", s.AssetID), attachedKeyboard())
	case s.Err != "":
		b.upsertStatus(chatID, "❌ "+s.Err, failedKeyboard())
	case s.Idle():
		b.upsertStatus(chatID, "Attachment removed.", tgbotapi.InlineKeyboardMarkup{InlineKeyboard: [][]tgbotapi.InlineKeyboardButton{}})
	}
}

// Confirm implements attach.Confirmer with an inline yes/no prompt. An
// unanswered prompt counts as "no".
func (b *TelegramBot) Confirm(ctx context.Context, prompt string) bool {
	b.sessionMu.Lock()
	chatID := b.sessionChat
	b.sessionMu.Unlock()
	if chatID == 0 {
		return false
	}

	ch := make(chan bool, 1)
	b.confirmMu.Lock()
	if b.confirmCh != nil {
		b.confirmMu.Unlock()
		return false
	}
	b.confirmCh = ch
	b.confirmMu.Unlock()

	msg := b.newMessage(chatID, prompt)
	msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("Yes", "confirm_yes"),
			tgbotapi.NewInlineKeyboardButtonData("No", "confirm_no"),
		),
	)
	if _, err := b.tg.Send(msg); err != nil {
		b.log.Errorf("bot: confirm prompt failed: %v", err)
		b.clearConfirm(ch)
		return false
	}

	return b.awaitConfirm(ctx, ch)
}

// awaitConfirm waits for the prompt's answer. Every unanswered path clears
// the pending channel so the next prompt is not auto-declined.
func (b *TelegramBot) awaitConfirm(ctx context.Context, ch chan bool) bool {
	select {
	case ok := <-ch:
		return ok
	case <-time.After(30 * time.Second):
	case <-ctx.Done():
	}
	b.clearConfirm(ch)
	return false
}

func (b *TelegramBot) clearConfirm(ch chan bool) {
	b.confirmMu.Lock()
	if b.confirmCh == ch {
		b.confirmCh = nil
	}
	b.confirmMu.Unlock()
}

func (b *TelegramBot) upsertStatus(chatID int64, text string, keyboard tgbotapi.InlineKeyboardMarkup) {
	b.sessionMu.Lock()
	msgID := b.statusMsgID
	b.sessionMu.Unlock()

	if msgID == 0 {
		msg := b.newMessage(chatID, text)
		if len(keyboard.InlineKeyboard) > 0 {
			msg.ReplyMarkup = keyboard
		}
		sent, err := b.tg.Send(msg)
		if err != nil {
			b.log.Errorf("bot: send status failed: %v", err)
			return
		}
		b.sessionMu.Lock()
		b.statusMsgID = sent.MessageID
		b.sessionMu.Unlock()
		return
	}

	edit := tgbotapi.NewEditMessageText(chatID, msgID, text)
	if len(keyboard.InlineKeyboard) > 0 {
		edit.ReplyMarkup = &keyboard
	}
	if _, err := b.tg.Send(edit); err != nil {
		b.log.Warnf("bot: edit status failed: %v", err)
	}
}

func (b *TelegramBot) downloadToTemp(ctx context.Context, fileID, fileName string) (string, error) {
	file, err := b.tg.GetFile(tgbotapi.FileConfig{FileID: fileID})
	if err != nil {
		return "", fmt.Errorf("get file: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "GET", file.Link(b.cfg.TelegramToken), nil)
	if err != nil {
		return "", err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("download: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("download: http %d", resp.StatusCode)
	}

	if fileName == "" {
		fileName = "video.mp4"
	}
	path := filepath.Join(b.cfg.TempDir, fmt.Sprintf("attach-%d-%s", time.Now().UnixNano(), filepath.Base(fileName)))
	out, err := os.Create(path)
	if err != nil {
		return "", err
	}
	defer out.Close()
	if _, err := io.Copy(out, resp.Body); err != nil {
		os.Remove(path)
		return "", err
	}
	return path, nil
}

func (b *TelegramBot) sendEmbedInfo(ctx context.Context, chatID int64, ref string) {
	info := b.resolver.Resolve(ctx, ref)
	if info.Fallback {
		b.replyText(chatID, fmt.Sprintf("⚠️ Metadata lookup failed, fallback stream:\n%s", info.StreamURL))
		return
	}
	text := fmt.Sprintf("🎬 %s\nProvider: %s\nStream: %s", info.Title, info.ProviderName, info.StreamURL)
	if info.PreviewURL != "" {
		text += "\nPreview: " + info.PreviewURL
	}
	b.replyText(chatID, text)
}

func (b *TelegramBot) sendAudioDoc(ctx context.Context, chatID int64, ref string) {
	html := b.audio.Render(ctx, ref)
	doc := tgbotapi.NewDocument(chatID, tgbotapi.FileBytes{
		Name:  "player.html",
		Bytes: []byte(html),
	})
	if _, err := b.tg.Send(doc); err != nil {
		b.log.Errorf("bot: send audio document failed: %v", err)
	}
}

func (b *TelegramBot) sendErrorsTail(chatID int64) {
	// 4000 keeps the reply under Telegram's message size limit
	text, err := TailLog(b.errorsPath, 30, 4000)
	if err != nil {
		b.replyText(chatID, fmt.Sprintf("❌ %v", err))
		return
	}
	if text == "" {
		b.replyText(chatID, "errors.log is empty")
		return
	}
	b.replyText(chatID, text)
}

// newMessage applies the configured notification policy: SILENT deliveries
// arrive without a client-side alert.
func (b *TelegramBot) newMessage(chatID int64, text string) tgbotapi.MessageConfig {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.DisableNotification = b.cfg.Silent
	return msg
}

func (b *TelegramBot) replyText(chatID int64, text string) {
	if _, err := b.tg.Send(b.newMessage(chatID, text)); err != nil {
		b.log.Errorf("bot: send failed: %v", err)
	}
}

func incomingVideo(msg *tgbotapi.Message) (fileID, fileName string) {
	if msg.Video != nil {
		return msg.Video.FileID, msg.Video.FileName
	}
	if msg.Document != nil && msg.Document.MimeType != "" &&
		len(msg.Document.MimeType) > 6 && msg.Document.MimeType[:6] == "video/" {
		return msg.Document.FileID, msg.Document.FileName
	}
	return "", ""
}

func describe(s attach.Snapshot) string {
	switch s.Phase() {
	case "idle":
		return "No video attached."
	case "prepared":
		return fmt.Sprintf("Prepared: %s (%d bytes)", s.Asset.FileName, s.Asset.SizeBytes)
	case "uploading":
		pct := 0.0
		if s.Progress != nil {
			pct = s.Progress.Percentage
		}
		return fmt.Sprintf("Uploading %s: %.0f%%", s.Asset.FileName, pct)
	case "failed":
		return "Failed: " + s.Err
	default:
		out := fmt.Sprintf("Attached: %s\nUpload URL: %s", s.AssetID, s.UploadURL)
		if s.ThumbnailURL != "" {
			out += "\nThumbnail: " + s.ThumbnailURL
		}
		return out
	}
}

func uploadingKeyboard() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("Cancel", "attach_cancel"),
		),
	)
}

func attachedKeyboard() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("Remove", "attach_remove"),
		),
	)
}

func failedKeyboard() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("Retry", "attach_retry"),
			tgbotapi.NewInlineKeyboardButtonData("Remove", "attach_remove"),
		),
	)
}
