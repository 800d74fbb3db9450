package provision

import (
	"context"
	"fmt"
	"time"

	"github.com/vietddude/guildctl/internal/core/domain"
	"github.com/vietddude/guildctl/internal/infra/discord"
	"github.com/vietddude/guildctl/internal/infra/retry"
)

// fakeAPI implements API with canned data and records every call by name.
type fakeAPI struct {
	calls []string
	errOn map[string]error

	self         domain.User
	guildOwner   string // owner of created guilds; defaults to self
	systemChan   bool   // created guilds get a system channel
	channels     []domain.Channel
	everyonePerm domain.Permissions

	users            map[string]*domain.User
	members          map[string]*domain.Member
	relationshipResp *domain.User

	createdGuilds   []string
	guildNames      map[string]string
	createdChannels []string
	sentMessages    []string
	grantedRoles    []string
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{
		self:       domain.User{ID: "self", Username: "provisioner"},
		users:      make(map[string]*domain.User),
		members:    make(map[string]*domain.Member),
		guildNames: make(map[string]string),
		errOn:      make(map[string]error),
	}
}

func (f *fakeAPI) record(name string) error {
	f.calls = append(f.calls, name)
	return f.errOn[name]
}

func (f *fakeAPI) called(name string) int {
	n := 0
	for _, c := range f.calls {
		if c == name {
			n++
		}
	}
	return n
}

func (f *fakeAPI) owner() string {
	if f.guildOwner != "" {
		return f.guildOwner
	}
	return f.self.ID
}

func (f *fakeAPI) CurrentUser(ctx context.Context) (*domain.User, error) {
	if err := f.record("CurrentUser"); err != nil {
		return nil, err
	}
	u := f.self
	return &u, nil
}

func (f *fakeAPI) CreateGuild(ctx context.Context, name string) (*domain.Guild, error) {
	if err := f.record("CreateGuild"); err != nil {
		return nil, err
	}
	id := fmt.Sprintf("g%d", len(f.createdGuilds)+1)
	f.createdGuilds = append(f.createdGuilds, id)
	f.guildNames[id] = name
	return &domain.Guild{ID: id, Name: name}, nil
}

func (f *fakeAPI) Guild(ctx context.Context, guildID string) (*domain.Guild, error) {
	if err := f.record("Guild"); err != nil {
		return nil, err
	}
	name := f.guildNames[guildID]
	if name == "" {
		name = "unknown"
	}
	g := &domain.Guild{
		ID:      guildID,
		Name:    name,
		OwnerID: f.owner(),
		Roles:   []domain.Role{{ID: guildID, Name: "@everyone", Permissions: f.everyonePerm}},
	}
	if f.systemChan {
		g.SystemChannelID = guildID + "-sys"
	}
	return g, nil
}

func (f *fakeAPI) GuildChannels(ctx context.Context, guildID string) ([]domain.Channel, error) {
	if err := f.record("GuildChannels"); err != nil {
		return nil, err
	}
	var channels []domain.Channel
	if f.systemChan {
		channels = append(channels, domain.Channel{
			ID:      guildID + "-sys",
			GuildID: guildID,
			Name:    "system",
			Type:    domain.ChannelTypeGuildText,
		})
	}
	for _, ch := range f.channels {
		ch.GuildID = guildID
		channels = append(channels, ch)
	}
	return channels, nil
}

func (f *fakeAPI) CreateChannel(ctx context.Context, guildID, name string) (*domain.Channel, error) {
	if err := f.record("CreateChannel"); err != nil {
		return nil, err
	}
	f.createdChannels = append(f.createdChannels, name)
	return &domain.Channel{
		ID:      guildID + "-" + name,
		GuildID: guildID,
		Name:    name,
		Type:    domain.ChannelTypeGuildText,
	}, nil
}

func (f *fakeAPI) CreateInvite(ctx context.Context, channelID string, maxAge, maxUses int, unique bool) (*domain.Invite, error) {
	if err := f.record("CreateInvite"); err != nil {
		return nil, err
	}
	return &domain.Invite{Code: "inv-" + channelID}, nil
}

func (f *fakeAPI) CreateRole(ctx context.Context, guildID, name string, permissions domain.Permissions) (*domain.Role, error) {
	if err := f.record("CreateRole"); err != nil {
		return nil, err
	}
	return &domain.Role{ID: guildID + "-role", Name: name, Permissions: permissions}, nil
}

func (f *fakeAPI) AddMemberRole(ctx context.Context, guildID, userID, roleID string) error {
	if err := f.record("AddMemberRole"); err != nil {
		return err
	}
	f.grantedRoles = append(f.grantedRoles, guildID+"/"+userID+"/"+roleID)
	return nil
}

func (f *fakeAPI) GuildMember(ctx context.Context, guildID, userID string) (*domain.Member, error) {
	if err := f.record("GuildMember"); err != nil {
		return nil, err
	}
	return f.members[guildID+"/"+userID], nil
}

func (f *fakeAPI) User(ctx context.Context, userID string) (*domain.User, error) {
	if err := f.record("User"); err != nil {
		return nil, err
	}
	if u, ok := f.users[userID]; ok {
		copied := *u
		return &copied, nil
	}
	return &domain.User{ID: userID, Username: "user-" + userID}, nil
}

func (f *fakeAPI) CreateRelationshipByID(ctx context.Context, userID string) (*domain.User, error) {
	if err := f.record("CreateRelationshipByID"); err != nil {
		return nil, err
	}
	return f.relationshipResp, nil
}

func (f *fakeAPI) CreateRelationshipByTag(ctx context.Context, username, disc string) (*domain.User, error) {
	if err := f.record("CreateRelationshipByTag"); err != nil {
		return nil, err
	}
	return f.relationshipResp, nil
}

func (f *fakeAPI) CreateDM(ctx context.Context, recipientID string) (*domain.Channel, error) {
	if err := f.record("CreateDM"); err != nil {
		return nil, err
	}
	return &domain.Channel{ID: "dm-" + recipientID}, nil
}

func (f *fakeAPI) SendMessage(ctx context.Context, channelID, content string) error {
	if err := f.record("SendMessage"); err != nil {
		return err
	}
	f.sentMessages = append(f.sentMessages, content)
	return nil
}

// countingEvents wraps a broker so tests can assert on subscription counts.
type countingEvents struct {
	broker         *discord.Broker
	subscribeCalls int
}

func newCountingEvents() *countingEvents {
	return &countingEvents{broker: discord.NewBroker()}
}

func (c *countingEvents) Subscribe(pred func(domain.MemberJoin) bool) (<-chan domain.MemberJoin, func()) {
	c.subscribeCalls++
	return c.broker.Subscribe(pred)
}

func (c *countingEvents) publishSoon(ev domain.MemberJoin) {
	go func() {
		time.Sleep(10 * time.Millisecond)
		c.broker.Publish(ev)
	}()
}

func testExecutor() *retry.Executor {
	return retry.New(retry.Config{MaxAttempts: 2, BaseDelay: time.Millisecond, Multiplier: 2.0}, nil)
}
