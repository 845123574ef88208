package command

import (
	"reflect"
	"testing"

	"github.com/jdelaire/openbot/core/message"
)

func TestTargets(t *testing.T) {
	tests := []struct {
		name           string
		msg            message.InboundMessage
		arg            string
		want           []string
		wantUnresolved []string
	}{
		{
			name: "literal ids",
			arg:  "@alice @bob @alice",
			want: []string{"alice", "bob"},
		},
		{
			name: "mentions and quote first",
			msg: message.InboundMessage{
				Mentions: []string{"7"},
				Quoted:   &message.QuotedRef{SenderID: "8"},
			},
			arg:  "@9",
			want: []string{"7", "8", "9"},
		},
		{
			name: "resolved handles become ids",
			msg: message.InboundMessage{
				Mentions: []string{"42"},
				Handles:  map[string]string{"alice": "42", "bob": "43"},
			},
			arg:  "@Alice @bob",
			want: []string{"42", "43"},
		},
		{
			name: "unresolved handles are skipped",
			msg: message.InboundMessage{
				Handles: map[string]string{"ghost": ""},
			},
			arg:            "@ghost spam",
			want:           []string{},
			wantUnresolved: []string{"ghost"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inv := &Invocation{Msg: tt.msg, Arg: tt.arg}
			if got := inv.Targets(); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Targets() = %#v, want %#v", got, tt.want)
			}
			if got := inv.Unresolved(); !reflect.DeepEqual(got, tt.wantUnresolved) {
				t.Errorf("Unresolved() = %#v, want %#v", got, tt.wantUnresolved)
			}
		})
	}
}
