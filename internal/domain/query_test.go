package domain

import (
	"reflect"
	"testing"
)

func ptr(s string) *string { return &s }

func baseCollab() Collab {
	return Collab{
		ID:           "c1",
		Author1ID:    "alice",
		Author2ID:    "bob",
		CreatedBy:    "alice",
		Status:       StatusActive,
		Author1Share: 70,
	}
}

func TestRoleAndPartner(t *testing.T) {
	c := baseCollab()
	if Role(c, "alice") != RoleAuthor1 || Role(c, "bob") != RoleAuthor2 || Role(c, "eve") != RoleNone {
		t.Fatal("role resolution wrong")
	}
	if Partner(c, "alice") != "bob" || Partner(c, "bob") != "alice" || Partner(c, "eve") != "" {
		t.Fatal("partner resolution wrong")
	}
	if Share(c, "alice") != 70 || Share(c, "bob") != 30 || Share(c, "eve") != 0 {
		t.Fatal("share resolution wrong")
	}
}

func TestPendingActions(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Collab)
		user   string
		want   []string
	}{
		{
			name:   "invited partner owes confirmation",
			mutate: func(c *Collab) { c.Status = StatusPending },
			user:   "bob",
			want:   []string{ActionConfirmParticipation},
		},
		{
			name:   "proposer owes nothing on pending",
			mutate: func(c *Collab) { c.Status = StatusPending },
			user:   "alice",
			want:   nil,
		},
		{
			name: "delete counterparty owes confirmation",
			mutate: func(c *Collab) {
				c.Status = StatusDeleteRequested
				c.DeleteReqBy = ptr("alice")
			},
			user: "bob",
			want: []string{ActionConfirmDelete},
		},
		{
			name: "delete requester owes nothing",
			mutate: func(c *Collab) {
				c.Status = StatusDeleteRequested
				c.DeleteReqBy = ptr("alice")
			},
			user: "alice",
			want: nil,
		},
		{
			name: "share counterparty owes resolution",
			mutate: func(c *Collab) {
				c.Proposal = &ShareProposal{Author1Share: 50, Author2Share: 50, RequestedBy: "bob"}
			},
			user: "alice",
			want: []string{ActionConfirmShareChange},
		},
		{
			name: "share proposer owes nothing",
			mutate: func(c *Collab) {
				c.Proposal = &ShareProposal{Author1Share: 50, Author2Share: 50, RequestedBy: "bob"}
			},
			user: "bob",
			want: nil,
		},
		{
			name: "stranger never owes anything",
			mutate: func(c *Collab) {
				c.Status = StatusPending
				c.Proposal = &ShareProposal{Author1Share: 50, Author2Share: 50, RequestedBy: "alice"}
			},
			user: "eve",
			want: nil,
		},
		{
			name:   "archived is quiet",
			mutate: func(c *Collab) { c.Status = StatusArchived },
			user:   "bob",
			want:   nil,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := baseCollab()
			tc.mutate(&c)
			got := PendingActions(c, tc.user)
			if !reflect.DeepEqual(got, tc.want) {
				t.Fatalf("PendingActions = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestAuthor2ShareDerived(t *testing.T) {
	c := baseCollab()
	if c.Author2Share() != 30 {
		t.Fatalf("author2 share = %d, want 30", c.Author2Share())
	}
	c.Author1Share = 1
	if c.Author2Share() != 99 {
		t.Fatalf("author2 share = %d, want 99", c.Author2Share())
	}
}
