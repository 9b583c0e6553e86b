package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/mymmrac/telego"

	"github.com/vulpo-bot/vulpo/pkg/fuzzysearch"
	"github.com/vulpo-bot/vulpo/pkg/logger"
	"github.com/vulpo-bot/vulpo/pkg/metrics"
	"github.com/vulpo-bot/vulpo/pkg/queue"
	"github.com/vulpo-bot/vulpo/pkg/resolver"
	"github.com/vulpo-bot/vulpo/pkg/store"
	"github.com/vulpo-bot/vulpo/pkg/telegram"
)

// decodeArg re-decodes the first JSON job argument into dst.
func decodeArg(args []interface{}, dst interface{}) error {
	if len(args) < 1 {
		return errors.New("job payload is missing its argument")
	}
	data, err := json.Marshal(args[0])
	if err != nil {
		return fmt.Errorf("encode payload: %w", err)
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("decode payload: %w", err)
	}
	return nil
}

// ChannelUpdate is the discover stage for channel posts. On success it
// enqueues a channel_edit carrying the first match of each site.
func (w *Worker) ChannelUpdate(ctx context.Context, args []interface{}) error {
	var msg telego.Message
	if err := decodeArg(args, &msg); err != nil {
		return err
	}
	if len(msg.Photo) == 0 {
		logger.DebugCF("worker", "channel post has no photo", map[string]any{
			"chat_id":    msg.Chat.ID,
			"message_id": msg.MessageID,
		})
		return nil
	}

	matches, err := w.resolver.Resolve(ctx, resolver.Request{
		Message: &msg,
		Path:    resolver.PathChannel,
	})
	if err != nil {
		return err
	}

	payload := queue.ChannelEdit{
		ChatID:    strconv.FormatInt(msg.Chat.ID, 10),
		MessageID: msg.MessageID,
		Firsts:    firsts(matches),
	}
	if msg.MediaGroupID != "" {
		groupID := msg.MediaGroupID
		payload.MediaGroupID = &groupID
	}

	if err := w.queue.Enqueue(ctx, queue.JobChannelEdit, payload); err != nil {
		return err
	}
	logger.InfoCF("worker", "channel edit enqueued", map[string]any{
		"chat_id":    payload.ChatID,
		"message_id": payload.MessageID,
		"sources":    len(payload.Firsts),
	})
	return nil
}

// ChannelEdit is the apply stage for channel posts: a caption edit for
// albums, an inline source keyboard otherwise.
func (w *Worker) ChannelEdit(ctx context.Context, args []interface{}) error {
	var payload queue.ChannelEdit
	if err := decodeArg(args, &payload); err != nil {
		return err
	}

	if at := w.gate.CheckMoreTime(ctx, payload.ChatID); at != nil {
		return w.waitForGate(ctx, queue.JobChannelEdit, payload.ChatID, *at, payload)
	}

	var err error
	if payload.MediaGroupID != nil {
		err = w.editor.EditCaption(ctx, payload.ChatID, payload.MessageID, captionText(payload.Firsts))
	} else {
		err = w.editor.EditKeyboard(ctx, payload.ChatID, payload.MessageID, telegram.Keyboard(buttons(payload.Firsts)))
	}

	return w.applyOutcome(ctx, queue.JobChannelEdit, payload.ChatID, payload, err, 400, 403)
}

// GroupPhoto is the discover stage for group messages. Groups must opt in
// via configuration; results render to localized text for the sender.
func (w *Worker) GroupPhoto(ctx context.Context, args []interface{}) error {
	var msg telego.Message
	if err := decodeArg(args, &msg); err != nil {
		return err
	}
	if len(msg.Photo) == 0 {
		return nil
	}

	enabled, err := w.groups.GroupConfigBool(ctx, msg.Chat.ID, store.GroupConfigAdd)
	if err != nil {
		return err
	}
	if !enabled {
		logger.DebugCF("worker", "group has sources disabled", map[string]any{
			"chat_id": msg.Chat.ID,
		})
		return nil
	}

	matches, err := w.resolver.Resolve(ctx, resolver.Request{
		Message: &msg,
		Path:    resolver.PathGroup,
	})
	if err != nil {
		return err
	}

	lang := ""
	if msg.From != nil {
		lang = msg.From.LanguageCode
	}
	text, err := w.renderMatches(lang, matches)
	if err != nil {
		return err
	}

	payload := queue.GroupSource{
		ChatID:           strconv.FormatInt(msg.Chat.ID, 10),
		ReplyToMessageID: msg.MessageID,
		Text:             text,
	}
	if err := w.queue.Enqueue(ctx, queue.JobGroupSource, payload); err != nil {
		return err
	}
	logger.InfoCF("worker", "group source enqueued", map[string]any{
		"chat_id": payload.ChatID,
		"sources": len(matches),
	})
	return nil
}

// GroupSource is the apply stage for group messages: a silent reply without
// link previews.
func (w *Worker) GroupSource(ctx context.Context, args []interface{}) error {
	var payload queue.GroupSource
	if err := decodeArg(args, &payload); err != nil {
		return err
	}

	if at := w.gate.CheckMoreTime(ctx, payload.ChatID); at != nil {
		return w.waitForGate(ctx, queue.JobGroupSource, payload.ChatID, *at, payload)
	}

	err := w.editor.SendReply(ctx, payload.ChatID, payload.ReplyToMessageID, payload.Text)
	return w.applyOutcome(ctx, queue.JobGroupSource, payload.ChatID, payload, err, 400)
}

// waitForGate reschedules an apply job to the gate's earliest send time.
func (w *Worker) waitForGate(ctx context.Context, jobType, chatID string, at time.Time, payload interface{}) error {
	metrics.GateBlocks.Inc()
	logger.InfoCF("worker", "chat is cooling down, rescheduling", map[string]any{
		"type":    jobType,
		"chat_id": chatID,
		"until":   at.Unix(),
	})
	return w.queue.EnqueueAt(ctx, at, jobType, payload)
}

// applyOutcome maps a platform response onto the job result: back-off
// requests reschedule, listed refusal codes are terminal successes, anything
// else is retried by the queue.
func (w *Worker) applyOutcome(ctx context.Context, jobType, chatID string, payload interface{}, err error, swallow ...int) error {
	o := telegram.Classify(err)
	switch {
	case o.OK():
		return nil
	case o.RateLimited():
		at := time.Now().Add(o.RetryAfter)
		w.gate.NeedsMoreTime(ctx, chatID, at)
		logger.WarnCF("worker", "platform asked to back off", map[string]any{
			"type":        jobType,
			"chat_id":     chatID,
			"retry_after": o.RetryAfter.Seconds(),
		})
		return w.queue.EnqueueAt(ctx, at, jobType, payload)
	case o.Rejected(swallow...):
		logger.WarnCF("worker", "platform refused the request", map[string]any{
			"type":    jobType,
			"chat_id": chatID,
			"code":    o.Code,
			"error":   err.Error(),
		})
		return nil
	default:
		return err
	}
}

// renderMatches renders the localized reply text for the group path,
// dropping trailing results that would not fit in one message.
func (w *Worker) renderMatches(lang string, matches []fuzzysearch.Match) (string, error) {
	if len(matches) == 1 {
		m := matches[0]
		return w.bundles.Render(lang, "automatic-single", map[string]any{
			"Link":   m.URL,
			"Rating": w.bundles.RatingName(lang, m.Rating),
		})
	}

	header, err := w.bundles.Render(lang, "automatic-multiple", nil)
	if err != nil {
		return "", err
	}

	lines := []string{header}
	total := len(header)
	for _, m := range matches {
		line, err := w.bundles.Render(lang, "automatic-multiple-result", map[string]any{
			"Link":   m.URL,
			"Rating": w.bundles.RatingName(lang, m.Rating),
		})
		if err != nil {
			return "", err
		}
		if total+len(line)+1 > telegram.MessageLengthLimit {
			break
		}
		lines = append(lines, line)
		total += len(line) + 1
	}
	return strings.Join(lines, "\n"), nil
}

func firsts(matches []fuzzysearch.Match) [][2]string {
	out := make([][2]string, len(matches))
	for i, m := range matches {
		out[i] = [2]string{m.Site.String(), m.URL}
	}
	return out
}

func captionText(firsts [][2]string) string {
	urls := make([]string, len(firsts))
	for i, f := range firsts {
		urls[i] = f[1]
	}
	return strings.Join(urls, "\n")
}

func buttons(firsts [][2]string) []telegram.Button {
	out := make([]telegram.Button, len(firsts))
	for i, f := range firsts {
		out[i] = telegram.Button{Label: f[0], URL: f[1]}
	}
	return out
}
