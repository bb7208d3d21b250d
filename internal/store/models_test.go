package store

import "testing"

func TestParseTaskStatus(t *testing.T) {
	tests := []struct {
		raw  string
		want TaskStatus
		ok   bool
	}{
		{"unselected", StatusUnselected, true},
		{"in-progress", StatusInProgress, true},
		{"done", StatusDone, true},
		{"review", StatusReview, true},
		{"archived", "", false},
		{"", "", false},
		{"Done", "", false},
	}
	for _, tc := range tests {
		t.Run(tc.raw, func(t *testing.T) {
			got, ok := ParseTaskStatus(tc.raw)
			if ok != tc.ok || got != tc.want {
				t.Fatalf("ParseTaskStatus(%q) = %q, %v; want %q, %v", tc.raw, got, ok, tc.want, tc.ok)
			}
		})
	}
}

func TestParseRole(t *testing.T) {
	if role, ok := ParseRole("admin"); !ok || role != RoleAdmin {
		t.Fatalf("ParseRole(admin) = %q, %v", role, ok)
	}
	if _, ok := ParseRole("superuser"); ok {
		t.Fatal("ParseRole accepted an unknown role")
	}
}

func TestCommentListOperations(t *testing.T) {
	list := CommentList{
		{ID: "cmt_1", Text: "first", AuthorID: "usr_a"},
		{ID: "cmt_2", Text: "second", AuthorID: "usr_b"},
		{ID: "cmt_3", Text: "third", AuthorID: "usr_a"},
	}

	comment, ok := list.Find("cmt_2")
	if !ok || comment.Text != "second" {
		t.Fatalf("Find(cmt_2) = %+v, %v", comment, ok)
	}
	if _, ok := list.Find("cmt_9"); ok {
		t.Fatal("Find returned a comment that does not exist")
	}

	if !list.SetText("cmt_2", "second, revised") {
		t.Fatal("SetText missed an existing comment")
	}
	if comment, _ := list.Find("cmt_2"); comment.Text != "second, revised" {
		t.Fatalf("text after SetText = %q", comment.Text)
	}

	if !list.Remove("cmt_2") {
		t.Fatal("Remove missed an existing comment")
	}
	if len(list) != 2 || list[0].ID != "cmt_1" || list[1].ID != "cmt_3" {
		t.Fatalf("list after Remove = %+v, want order preserved", list)
	}
	if list.Remove("cmt_2") {
		t.Fatal("Remove deleted a comment twice")
	}

	list.Append(Comment{ID: "cmt_4", Text: "fourth", AuthorID: "usr_b"})
	if list[len(list)-1].ID != "cmt_4" {
		t.Fatal("Append did not add to the tail")
	}
}

func TestProjectIsMember(t *testing.T) {
	project := Project{OwnerID: "usr_owner", Collaborators: []string{"usr_a", "usr_b"}}
	for _, id := range []string{"usr_owner", "usr_a", "usr_b"} {
		if !project.IsMember(id) {
			t.Fatalf("IsMember(%q) = false", id)
		}
	}
	if project.IsMember("usr_x") || project.IsMember("") {
		t.Fatal("IsMember accepted a non-member")
	}
}
