package service

import (
	"testing"

	"blogosphere/internal/models"

	"github.com/stretchr/testify/assert"
)

func TestPolicy(t *testing.T) {
	t.Parallel()

	draft := &models.Post{AuthorID: 1, Status: models.PostStatusDraft}
	published := &models.Post{AuthorID: 1, Status: models.PostStatusPublished}
	legacy := &models.Post{AuthorID: 1, Status: models.PostStatusDraft, Published: true}

	author := Caller{UserID: 1, Role: models.RoleUser}
	stranger := Caller{UserID: 2, Role: models.RoleUser}
	admin := Caller{UserID: 3, Role: models.RoleAdmin}
	anon := Caller{}
	roleOnly := Caller{Role: models.RoleAdmin}

	tests := []struct {
		name    string
		post    *models.Post
		caller  Caller
		read    bool
		modify  bool
		publish bool
	}{
		{"draft/author", draft, author, true, true, true},
		{"draft/stranger", draft, stranger, false, false, false},
		{"draft/admin", draft, admin, true, true, false},
		{"draft/anonymous", draft, anon, false, false, false},
		{"draft/role without user", draft, roleOnly, false, false, false},
		{"published/anonymous", published, anon, true, false, false},
		{"published/stranger", published, stranger, true, false, false},
		{"legacy flag/anonymous", legacy, anon, true, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.read, CanRead(tt.post, tt.caller), "read")
			assert.Equal(t, tt.modify, CanModify(tt.post, tt.caller), "modify")
			assert.Equal(t, tt.publish, CanPublish(tt.post, tt.caller), "publish")
		})
	}
}
