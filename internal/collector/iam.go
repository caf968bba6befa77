package collector

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/iam"
	"github.com/org/exposuregraph/pkg/models"
	"github.com/rs/zerolog/log"
)

// iamAPI is the subset of the IAM client the collector uses.
type iamAPI interface {
	ListRoles(ctx context.Context, params *iam.ListRolesInput, optFns ...func(*iam.Options)) (*iam.ListRolesOutput, error)
	ListAttachedRolePolicies(ctx context.Context, params *iam.ListAttachedRolePoliciesInput, optFns ...func(*iam.Options)) (*iam.ListAttachedRolePoliciesOutput, error)
	GetPolicy(ctx context.Context, params *iam.GetPolicyInput, optFns ...func(*iam.Options)) (*iam.GetPolicyOutput, error)
	GetPolicyVersion(ctx context.Context, params *iam.GetPolicyVersionInput, optFns ...func(*iam.Options)) (*iam.GetPolicyVersionOutput, error)
	ListRolePolicies(ctx context.Context, params *iam.ListRolePoliciesInput, optFns ...func(*iam.Options)) (*iam.ListRolePoliciesOutput, error)
	GetRolePolicy(ctx context.Context, params *iam.GetRolePolicyInput, optFns ...func(*iam.Options)) (*iam.GetRolePolicyOutput, error)
}

// IAMCollector enumerates roles and aggregates their managed and inline
// policies into RoleRecords.
type IAMCollector struct {
	client    iamAPI
	accountID string
}

// NewIAMCollector creates a collector for one account using the given
// (usually assumed-role) config.
func NewIAMCollector(cfg aws.Config, accountID string) *IAMCollector {
	return &IAMCollector{client: iam.NewFromConfig(cfg), accountID: accountID}
}

// CollectRoles fetches every IAM role in the account with its full policy set.
// A policy whose document cannot be fetched or decoded is skipped with a
// warning; the role itself is still collected.
func (c *IAMCollector) CollectRoles(ctx context.Context) ([]models.RoleRecord, error) {
	var records []models.RoleRecord

	paginator := iam.NewListRolesPaginator(c.client, &iam.ListRolesInput{})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("listing roles: %w", err)
		}
		for _, role := range page.Roles {
			rec := models.RoleRecord{
				ARN:       aws.ToString(role.Arn),
				Name:      aws.ToString(role.RoleName),
				AccountID: c.accountID,
			}
			managed, err := c.attachedPolicies(ctx, rec.Name)
			if err != nil {
				return nil, err
			}
			inline, err := c.inlinePolicies(ctx, rec.ARN, rec.Name)
			if err != nil {
				return nil, err
			}
			rec.Policies = append(managed, inline...)
			records = append(records, rec)
		}
	}
	return records, nil
}

func (c *IAMCollector) attachedPolicies(ctx context.Context, roleName string) ([]models.PolicyRecord, error) {
	out, err := c.client.ListAttachedRolePolicies(ctx, &iam.ListAttachedRolePoliciesInput{
		RoleName: aws.String(roleName),
	})
	if err != nil {
		return nil, fmt.Errorf("listing attached policies for %s: %w", roleName, err)
	}

	var records []models.PolicyRecord
	for _, attached := range out.AttachedPolicies {
		policyARN := aws.ToString(attached.PolicyArn)
		doc, err := c.managedPolicyDocument(ctx, policyARN)
		if err != nil {
			log.Warn().Str("policy", policyARN).Err(err).Msg("skipping unreadable managed policy")
			continue
		}
		records = append(records, models.PolicyRecord{
			ARN:      policyARN,
			Name:     aws.ToString(attached.PolicyName),
			Type:     models.PolicyTypeManaged,
			Document: doc,
		})
	}
	return records, nil
}

// managedPolicyDocument fetches the document of the policy's default version.
func (c *IAMCollector) managedPolicyDocument(ctx context.Context, policyARN string) (json.RawMessage, error) {
	pol, err := c.client.GetPolicy(ctx, &iam.GetPolicyInput{PolicyArn: aws.String(policyARN)})
	if err != nil {
		return nil, fmt.Errorf("getting policy: %w", err)
	}
	ver, err := c.client.GetPolicyVersion(ctx, &iam.GetPolicyVersionInput{
		PolicyArn: aws.String(policyARN),
		VersionId: pol.Policy.DefaultVersionId,
	})
	if err != nil {
		return nil, fmt.Errorf("getting policy version: %w", err)
	}
	return decodeDocument(aws.ToString(ver.PolicyVersion.Document))
}

func (c *IAMCollector) inlinePolicies(ctx context.Context, roleARN, roleName string) ([]models.PolicyRecord, error) {
	out, err := c.client.ListRolePolicies(ctx, &iam.ListRolePoliciesInput{
		RoleName: aws.String(roleName),
	})
	if err != nil {
		return nil, fmt.Errorf("listing inline policies for %s: %w", roleName, err)
	}

	var records []models.PolicyRecord
	for _, name := range out.PolicyNames {
		pol, err := c.client.GetRolePolicy(ctx, &iam.GetRolePolicyInput{
			RoleName:   aws.String(roleName),
			PolicyName: aws.String(name),
		})
		if err != nil {
			log.Warn().Str("role", roleName).Str("policy", name).Err(err).Msg("skipping unreadable inline policy")
			continue
		}
		doc, err := decodeDocument(aws.ToString(pol.PolicyDocument))
		if err != nil {
			log.Warn().Str("role", roleName).Str("policy", name).Err(err).Msg("skipping undecodable inline policy")
			continue
		}
		records = append(records, models.PolicyRecord{
			// Inline policies have no ARN of their own; synthesize a stable
			// key under the owning role.
			ARN:      roleARN + "/policy/" + name,
			Name:     name,
			Type:     models.PolicyTypeInline,
			Document: doc,
		})
	}
	return records, nil
}

// decodeDocument turns the URL-encoded JSON the IAM API returns into raw JSON.
func decodeDocument(encoded string) (json.RawMessage, error) {
	decoded, err := url.QueryUnescape(encoded)
	if err != nil {
		return nil, fmt.Errorf("url-decoding policy document: %w", err)
	}
	if !json.Valid([]byte(decoded)) {
		return nil, fmt.Errorf("policy document is not valid JSON")
	}
	return json.RawMessage(decoded), nil
}
