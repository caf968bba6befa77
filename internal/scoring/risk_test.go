package scoring

import "testing"

func TestClassifyAction(t *testing.T) {
	cases := []struct {
		action string
		want   RiskLevel
	}{
		{"s3:DeleteObject", RiskHigh},
		{"ec2:TerminateInstances", RiskHigh},
		{"s3:GetObject", RiskLow},
		{"ec2:DescribeInstances", RiskLow},
		{"iam:CreateRole", RiskMedium},
		{"s3:PutObject", RiskMedium},
		{"s3:Get*", RiskMedium},
		{"*", RiskMedium},
		{"lambda:InvokeFunction", RiskMedium}, // unknown prefix is conservative
	}
	for _, tc := range cases {
		if got := ClassifyAction(tc.action); got != tc.want {
			t.Errorf("%s: expected %s got %s", tc.action, tc.want, got)
		}
	}
}

func TestClassifySet(t *testing.T) {
	if got := ClassifySet(nil); got != RiskLow {
		t.Errorf("empty set: expected LOW got %s", got)
	}
	if got := ClassifySet([]string{"s3:GetObject", "s3:ListBucket"}); got != RiskLow {
		t.Errorf("read-only set: expected LOW got %s", got)
	}
	if got := ClassifySet([]string{"s3:GetObject", "s3:PutObject"}); got != RiskMedium {
		t.Errorf("mixed set: expected MEDIUM got %s", got)
	}
	if got := ClassifySet([]string{"s3:GetObject", "s3:DeleteObject"}); got != RiskHigh {
		t.Errorf("destructive set: expected HIGH got %s", got)
	}
}
