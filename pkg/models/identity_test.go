package models

import (
	"encoding/json"
	"reflect"
	"testing"
)

func TestPolicyDocumentActionForms(t *testing.T) {
	cases := []struct {
		name string
		doc  string
		want []string
	}{
		{
			name: "single string action",
			doc:  `{"Version":"2012-10-17","Statement":[{"Effect":"Allow","Action":"s3:GetObject"}]}`,
			want: []string{"s3:GetObject"},
		},
		{
			name: "action list",
			doc:  `{"Version":"2012-10-17","Statement":[{"Effect":"Allow","Action":["s3:GetObject","s3:PutObject"]}]}`,
			want: []string{"s3:GetObject", "s3:PutObject"},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var doc PolicyDocument
			if err := json.Unmarshal([]byte(tc.doc), &doc); err != nil {
				t.Fatalf("unmarshal: %v", err)
			}
			if len(doc.Statement) != 1 {
				t.Fatalf("expected 1 statement, got %d", len(doc.Statement))
			}
			got := []string(doc.Statement[0].Action)
			if !reflect.DeepEqual(got, tc.want) {
				t.Errorf("actions: expected %v got %v", tc.want, got)
			}
		})
	}
}

func TestPolicyDocumentMalformed(t *testing.T) {
	var doc PolicyDocument
	if err := json.Unmarshal([]byte(`{"Statement":[{"Effect":"Allow","Action":42}]}`), &doc); err == nil {
		t.Error("expected error for non-string action")
	}
}
