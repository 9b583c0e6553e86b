package ingest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/mymmrac/telego"

	"github.com/vulpo-bot/vulpo/pkg/queue"
)

type enqueuedJob struct {
	jobType string
	args    []interface{}
}

type fakeQueue struct {
	err  error
	jobs []enqueuedJob
}

func (q *fakeQueue) Enqueue(_ context.Context, jobType string, args ...interface{}) error {
	if q.err != nil {
		return q.err
	}
	q.jobs = append(q.jobs, enqueuedJob{jobType: jobType, args: args})
	return nil
}

func testPhoto() []telego.PhotoSize {
	return []telego.PhotoSize{
		{FileID: "f-1", FileUniqueID: "u-1", Width: 1280, Height: 960},
	}
}

func TestDispatch(t *testing.T) {
	tests := []struct {
		name     string
		update   telego.Update
		wantType string
	}{
		{
			name: "channel photo post",
			update: telego.Update{ChannelPost: &telego.Message{
				Chat:  telego.Chat{ID: -1001, Type: "channel"},
				Photo: testPhoto(),
			}},
			wantType: queue.JobChannelUpdate,
		},
		{
			name: "channel text post",
			update: telego.Update{ChannelPost: &telego.Message{
				Chat: telego.Chat{ID: -1001, Type: "channel"},
				Text: "announcement",
			}},
		},
		{
			name: "forwarded channel post",
			update: telego.Update{ChannelPost: &telego.Message{
				Chat:          telego.Chat{ID: -1001, Type: "channel"},
				Photo:         testPhoto(),
				ForwardOrigin: &telego.MessageOriginChannel{Chat: telego.Chat{ID: -42}, MessageID: 7},
			}},
		},
		{
			name: "channel post already carrying a keyboard",
			update: telego.Update{ChannelPost: &telego.Message{
				Chat:        telego.Chat{ID: -1001, Type: "channel"},
				Photo:       testPhoto(),
				ReplyMarkup: &telego.InlineKeyboardMarkup{},
			}},
		},
		{
			name: "group photo",
			update: telego.Update{Message: &telego.Message{
				Chat:  telego.Chat{ID: -200, Type: "group"},
				Photo: testPhoto(),
			}},
			wantType: queue.JobGroupPhoto,
		},
		{
			name: "supergroup photo",
			update: telego.Update{Message: &telego.Message{
				Chat:  telego.Chat{ID: -201, Type: "supergroup"},
				Photo: testPhoto(),
			}},
			wantType: queue.JobGroupPhoto,
		},
		{
			name: "private chat photo",
			update: telego.Update{Message: &telego.Message{
				Chat:  telego.Chat{ID: 42, Type: "private"},
				Photo: testPhoto(),
			}},
		},
		{
			name: "group text message",
			update: telego.Update{Message: &telego.Message{
				Chat: telego.Chat{ID: -200, Type: "group"},
				Text: "hi",
			}},
		},
		{
			name:   "empty update",
			update: telego.Update{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := &fakeQueue{}
			p := New(Options{Queue: q})

			p.Dispatch(context.Background(), tt.update)

			if tt.wantType == "" {
				if len(q.jobs) != 0 {
					t.Fatalf("enqueued %+v, want nothing", q.jobs)
				}
				return
			}
			if len(q.jobs) != 1 {
				t.Fatalf("enqueued %d jobs, want 1", len(q.jobs))
			}
			if q.jobs[0].jobType != tt.wantType {
				t.Fatalf("job type = %q, want %q", q.jobs[0].jobType, tt.wantType)
			}
		})
	}
}

func TestDispatchSurvivesEnqueueFailure(t *testing.T) {
	q := &fakeQueue{err: errors.New("queue down")}
	p := New(Options{Queue: q})

	p.Dispatch(context.Background(), telego.Update{ChannelPost: &telego.Message{
		Chat:  telego.Chat{ID: -1001, Type: "channel"},
		Photo: testPhoto(),
	}})

	if len(q.jobs) != 0 {
		t.Fatalf("jobs = %+v, want none recorded", q.jobs)
	}
}

type scriptedSource struct {
	batches [][]telego.Update
	calls   int
	offsets []int
	cancel  context.CancelFunc
}

func (s *scriptedSource) GetUpdates(_ context.Context, params *telego.GetUpdatesParams) ([]telego.Update, error) {
	s.offsets = append(s.offsets, params.Offset)
	if s.calls >= len(s.batches) {
		s.cancel()
		return nil, context.Canceled
	}
	batch := s.batches[s.calls]
	s.calls++
	return batch, nil
}

func TestRunAdvancesOffset(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	src := &scriptedSource{
		cancel: cancel,
		batches: [][]telego.Update{
			{
				{UpdateID: 10, ChannelPost: &telego.Message{
					Chat:  telego.Chat{ID: -1001, Type: "channel"},
					Photo: testPhoto(),
				}},
				{UpdateID: 11, Message: &telego.Message{
					Chat:  telego.Chat{ID: -200, Type: "group"},
					Photo: testPhoto(),
				}},
			},
			{},
		},
	}
	q := &fakeQueue{}
	p := New(Options{Source: src, Queue: q, PollTimeout: time.Second})

	if err := p.Run(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("Run returned %v, want context.Canceled", err)
	}

	if len(q.jobs) != 2 {
		t.Fatalf("enqueued %d jobs, want 2", len(q.jobs))
	}
	wantOffsets := []int{0, 12, 12}
	if len(src.offsets) != len(wantOffsets) {
		t.Fatalf("polled offsets %v, want %v", src.offsets, wantOffsets)
	}
	for i, want := range wantOffsets {
		if src.offsets[i] != want {
			t.Fatalf("poll %d used offset %d, want %d", i, src.offsets[i], want)
		}
	}
}
