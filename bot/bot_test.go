package bot

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cppla/rollcall/ledger"
	"github.com/cppla/rollcall/models"
	"github.com/cppla/rollcall/store"
)

const (
	allowedGroup int64 = -1001
	otherGroup   int64 = -2002
)

var ist = time.FixedZone("IST", 5*3600+1800)

type sent struct {
	group ledger.GroupID
	Message
}

type fakeTransport struct {
	mu       sync.Mutex
	count    int
	countErr error
	sent     []sent
}

func (f *fakeTransport) MemberCount(context.Context, ledger.GroupID) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.count, f.countErr
}

func (f *fakeTransport) Send(_ context.Context, g ledger.GroupID, m Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, sent{group: g, Message: m})
	return nil
}

func (f *fakeTransport) texts() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.sent))
	for _, s := range f.sent {
		out = append(out, s.Text)
	}
	return out
}

func (f *fakeTransport) reset() {
	f.mu.Lock()
	f.sent = nil
	f.mu.Unlock()
}

type harness struct {
	clock      *ledger.FixedClock
	ledger     *ledger.Ledger
	transport  *fakeTransport
	reporter   *Reporter
	dispatcher *Dispatcher
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	clock := ledger.NewFixedClock(time.Date(2024, 1, 1, 9, 0, 0, 0, ist))
	led := ledger.New(clock, ledger.WithStore(store.NewMemory()))
	rot := ledger.NewRotation(clock, ledger.StaticContent{
		{ID: "1", Title: "Hand washing", Body: "Wash for twenty seconds."},
		{ID: "2", Body: "Drink water."},
	}, store.NewMemory(), nil)
	tr := &fakeTransport{count: 3}
	rep := NewReporter(led, rot, tr, nil)
	rep.SetPace(0)
	d := NewDispatcher(led, rep, ledger.NewMemoryBatchFilter(time.Minute, 100),
		func(g int64) bool { return g == allowedGroup }, nil)
	d.pause = 0
	return &harness{clock: clock, ledger: led, transport: tr, reporter: rep, dispatcher: d}
}

func photo(chat, user int64, name, batch string) Update {
	return Update{Message: &tgbotapi.Message{
		Chat:         &tgbotapi.Chat{ID: chat, Type: "supergroup"},
		From:         &tgbotapi.User{ID: user, FirstName: name},
		Photo:        []tgbotapi.PhotoSize{{FileID: "f"}},
		MediaGroupID: batch,
	}}
}

func text(chat int64, body string) Update {
	return Update{Message: &tgbotapi.Message{
		Chat: &tgbotapi.Chat{ID: chat, Type: "supergroup"},
		From: &tgbotapi.User{ID: 1, FirstName: "Op"},
		Text: body,
	}}
}

func TestDispatcher_PhotoCheckIn(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	require.NoError(t, h.dispatcher.HandleUpdate(ctx, photo(allowedGroup, 10, "Asha", "")))
	require.NoError(t, h.dispatcher.HandleUpdate(ctx, photo(allowedGroup, 10, "Asha", "")))

	assert.Equal(t, []string{confirmationText("Asha")}, h.transport.texts(), "second photo is a silent duplicate")
	assert.Equal(t, 1, h.ledger.Streak(ledger.GroupID(allowedGroup), 10))
}

func TestDispatcher_MediaGroupCountsOnce(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		require.NoError(t, h.dispatcher.HandleUpdate(ctx, photo(allowedGroup, 10, "Asha", "album-9")))
	}
	assert.Len(t, h.transport.texts(), 1)
}

func TestDispatcher_DuplicateStillRegistersMember(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	require.NoError(t, h.dispatcher.HandleUpdate(ctx, photo(allowedGroup, 10, "Asha", "")))
	require.NoError(t, h.dispatcher.HandleUpdate(ctx, photo(allowedGroup, 10, "Asha Devi", "")))
	assert.Equal(t, []ledger.Member{{ID: 10, Name: "Asha Devi"}}, h.ledger.Members(ledger.GroupID(allowedGroup)))
}

func TestDispatcher_IgnoresUnknownGroupsAndPrivateChats(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	require.NoError(t, h.dispatcher.HandleUpdate(ctx, photo(otherGroup, 10, "Asha", "")))
	private := photo(allowedGroup, 10, "Asha", "")
	private.Message.Chat.Type = "private"
	require.NoError(t, h.dispatcher.HandleUpdate(ctx, private))
	require.NoError(t, h.dispatcher.HandleUpdate(ctx, text(otherGroup, "/start")))

	assert.Empty(t, h.transport.texts())
	assert.Empty(t, h.ledger.Members(ledger.GroupID(otherGroup)))
	assert.Empty(t, h.ledger.Members(ledger.GroupID(allowedGroup)))
}

func TestDispatcher_IDWorksAnywhere(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.dispatcher.HandleUpdate(context.Background(), text(otherGroup, "/id@rollcall_bot")))
	assert.Equal(t, []string{"chat_id: -2002"}, h.transport.texts())
}

func TestDispatcher_Commands(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	g := ledger.GroupID(allowedGroup)

	require.NoError(t, h.ledger.Observe(ctx, g, 30, "Meena"))
	require.NoError(t, h.dispatcher.HandleUpdate(ctx, photo(allowedGroup, 10, "Asha", "")))
	h.transport.reset()

	require.NoError(t, h.dispatcher.HandleUpdate(ctx, text(allowedGroup, "/start")))
	require.NoError(t, h.dispatcher.HandleUpdate(ctx, text(allowedGroup, "/members")))
	require.NoError(t, h.dispatcher.HandleUpdate(ctx, text(allowedGroup, "/pending")))
	require.NoError(t, h.dispatcher.HandleUpdate(ctx, text(allowedGroup, "/unknown")))

	assert.Equal(t, []string{
		welcomeText(),
		"👥 Group members right now: 3",
		"⏳ आज पेंडिंग: 1\nMeena",
	}, h.transport.texts())
}

func TestDispatcher_ReportThenAwards(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	require.NoError(t, h.dispatcher.HandleUpdate(ctx, photo(allowedGroup, 10, "Asha", "")))
	require.NoError(t, h.dispatcher.HandleUpdate(ctx, photo(allowedGroup, 20, "Ravi", "")))
	h.transport.reset()

	require.NoError(t, h.dispatcher.HandleUpdate(ctx, text(allowedGroup, "/report")))
	msgs := h.transport.sent
	require.Len(t, msgs, 3)
	assert.Contains(t, msgs[0].Text, "✅ आज रिपोर्ट भेजी: 2")
	assert.False(t, msgs[0].Markdown)
	assert.True(t, msgs[1].Markdown)
	assert.Contains(t, msgs[1].Text, "🥇 *Asha*")
	assert.Contains(t, msgs[2].Text, "🥈 *Ravi*")
}

func TestDispatcher_ReportFailsWithoutMemberCount(t *testing.T) {
	h := newHarness(t)
	h.transport.countErr = errors.New("forbidden")
	err := h.dispatcher.HandleUpdate(context.Background(), text(allowedGroup, "/report"))
	assert.Error(t, err)
	assert.Empty(t, h.transport.texts())
}

func TestDispatcher_ChatMemberUpdates(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	g := ledger.GroupID(allowedGroup)

	member := func(status string, u *tgbotapi.User) Update {
		return Update{ChatMember: &tgbotapi.ChatMemberUpdated{
			Chat:          tgbotapi.Chat{ID: allowedGroup, Type: "supergroup"},
			NewChatMember: tgbotapi.ChatMember{Status: status, User: u},
		}}
	}
	joined := member("member", &tgbotapi.User{ID: 40, FirstName: "<i>Kiran</i>"})
	left := member("left", &tgbotapi.User{ID: 41, FirstName: "Gone"})
	admin := member("administrator", &tgbotapi.User{ID: 42})
	for _, u := range []Update{joined, left, admin, member("member", nil)} {
		require.NoError(t, h.dispatcher.HandleUpdate(ctx, u))
	}

	assert.Equal(t, []ledger.Member{{ID: 40, Name: "Kiran"}, {ID: 42, Name: ledger.DefaultName}}, h.ledger.Members(g))
	assert.Empty(t, h.transport.texts())
}

func TestDispatcher_NextContent(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	require.NoError(t, h.dispatcher.HandleUpdate(ctx, text(allowedGroup, "/next")))
	require.NoError(t, h.dispatcher.HandleUpdate(ctx, text(allowedGroup, "/next")))
	h.clock.AddDays(1)
	require.NoError(t, h.dispatcher.HandleUpdate(ctx, text(allowedGroup, "/next")))
	h.clock.AddDays(1)
	require.NoError(t, h.dispatcher.HandleUpdate(ctx, text(allowedGroup, "/next")))

	first := contentText(models.ContentItem{ID: "1", Title: "Hand washing", Body: "Wash for twenty seconds."})
	assert.Equal(t, []string{
		first,
		first,
		contentText(models.ContentItem{ID: "2", Body: "Drink water."}),
		exhaustedText(),
	}, h.transport.texts())
}

func TestReporter_AnnounceSendsGivenItem(t *testing.T) {
	h := newHarness(t)
	item := models.ContentItem{ID: "9", Title: "Nutrition", Body: "Eat greens."}
	require.NoError(t, h.reporter.Announce(context.Background(), ledger.GroupID(allowedGroup), item))
	assert.Equal(t, []string{contentText(item)}, h.transport.texts())
	assert.Equal(t, models.RotationState{Index: -1}, h.reporter.rotation.State(ledger.GroupID(allowedGroup)), "announce does not rotate")
}

func TestReporter_AwardsSkipsEmptyBoard(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.ledger.Observe(context.Background(), ledger.GroupID(allowedGroup), 10, "Asha"))
	require.NoError(t, h.reporter.Awards(context.Background(), ledger.GroupID(allowedGroup)))
	assert.Empty(t, h.transport.texts())
}

func TestReporter_NextContentWithoutRotation(t *testing.T) {
	h := newHarness(t)
	rep := NewReporter(h.ledger, nil, h.transport, nil)
	err := rep.NextContent(context.Background(), ledger.GroupID(allowedGroup))
	assert.ErrorIs(t, err, ledger.ErrContentUnavailable)
}

func TestCommand(t *testing.T) {
	tests := []struct {
		in   string
		want string
		ok   bool
	}{
		{"/report", "report", true},
		{"/Pending@rollcall_bot now", "pending", true},
		{"/", "", false},
		{"hello", "", false},
	}
	for _, tt := range tests {
		got, ok := command(tt.in)
		assert.Equal(t, tt.ok, ok, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}
