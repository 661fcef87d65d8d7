package bus

import (
	"testing"

	"github.com/fieldops/pitsignal/internal/services/support/domain"
)

func lifecycleEvent(kind domain.Kind, ticketID string, team int) domain.TicketEvent {
	return domain.TicketEvent{
		Kind: kind,
		Ticket: domain.Ticket{
			ID:   ticketID,
			Team: team,
		},
	}
}

func TestScopeAdmission(t *testing.T) {
	t.Parallel()

	allKinds := []domain.Kind{domain.KindCreate, domain.KindAssign, domain.KindUnassign, domain.KindStatus}

	cases := []struct {
		name  string
		pred  Predicate
		admit map[domain.Kind]bool
	}{
		{
			name: "background admits create only",
			pred: Background(),
			admit: map[domain.Kind]bool{
				domain.KindCreate:   true,
				domain.KindAssign:   false,
				domain.KindUnassign: false,
				domain.KindStatus:   false,
			},
		},
		{
			name: "foreground admits everything",
			pred: Foreground(),
			admit: map[domain.Kind]bool{
				domain.KindCreate:   true,
				domain.KindAssign:   true,
				domain.KindUnassign: true,
				domain.KindStatus:   true,
			},
		},
		{
			name: "ticket scope admits assign and status for matching ticket",
			pred: TicketScoped("tkt-1"),
			admit: map[domain.Kind]bool{
				domain.KindCreate:   false,
				domain.KindAssign:   true,
				domain.KindUnassign: false,
				domain.KindStatus:   true,
			},
		},
		{
			name: "team scope admits create assign status for matching team",
			pred: TeamScoped(7),
			admit: map[domain.Kind]bool{
				domain.KindCreate:   true,
				domain.KindAssign:   true,
				domain.KindUnassign: false,
				domain.KindStatus:   true,
			},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			for _, kind := range allKinds {
				ev := lifecycleEvent(kind, "tkt-1", 7)
				if got := tc.pred(ev); got != tc.admit[kind] {
					t.Fatalf("kind %s: admit = %v, want %v", kind, got, tc.admit[kind])
				}
			}
		})
	}
}

func TestTicketScopeRejectsOtherTickets(t *testing.T) {
	t.Parallel()

	pred := TicketScoped("tkt-1")
	if pred(lifecycleEvent(domain.KindStatus, "tkt-2", 7)) {
		t.Fatal("expected ticket scope to reject a different ticket")
	}
}

func TestTeamScopeRejectsOtherTeams(t *testing.T) {
	t.Parallel()

	pred := TeamScoped(7)
	if pred(lifecycleEvent(domain.KindCreate, "tkt-1", 9)) {
		t.Fatal("expected team scope to reject a different team")
	}
}

func TestPredicatesAreDeterministic(t *testing.T) {
	t.Parallel()

	preds := []Predicate{Background(), Foreground(), TicketScoped("tkt-1"), TeamScoped(7)}
	ev := lifecycleEvent(domain.KindAssign, "tkt-1", 7)
	for i, pred := range preds {
		first := pred(ev)
		for range 10 {
			if pred(ev) != first {
				t.Fatalf("predicate %d: decision changed between identical events", i)
			}
		}
	}
}

func TestTeamScopedFanOutScenario(t *testing.T) {
	t.Parallel()

	b := New(testLogger())
	teamSeven := b.Subscribe(TeamScoped(7))
	teamNine := b.Subscribe(TeamScoped(9))
	background := b.Subscribe(Background())

	b.Publish(lifecycleEvent(domain.KindCreate, "tkt-T", 7))

	sevenEvents := drain(teamSeven)
	if len(sevenEvents) != 1 || sevenEvents[0].Ticket.ID != "tkt-T" {
		t.Fatalf("team 7 subscriber: got %+v, want one create for tkt-T", sevenEvents)
	}
	backgroundEvents := drain(background)
	if len(backgroundEvents) != 1 || backgroundEvents[0].Ticket.ID != "tkt-T" {
		t.Fatalf("background subscriber: got %+v, want one create for tkt-T", backgroundEvents)
	}
	if got := drain(teamNine); len(got) != 0 {
		t.Fatalf("team 9 subscriber: expected nothing, got %+v", got)
	}
}
