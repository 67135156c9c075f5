package automation

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	ssmtypes "github.com/aws/aws-sdk-go-v2/service/ssm/types"
)

// documentFormat infers the document format from an explicit value or the
// file extension.
func documentFormat(explicit, path string) ssmtypes.DocumentFormat {
	switch strings.ToUpper(explicit) {
	case "YAML":
		return ssmtypes.DocumentFormatYaml
	case "JSON":
		return ssmtypes.DocumentFormatJson
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return ssmtypes.DocumentFormatYaml
	default:
		return ssmtypes.DocumentFormatJson
	}
}

// CreateDocument registers the Automation document at path under name,
// replacing any stale copy, and waits until SSM reports it Active.
func (r *Runner) CreateDocument(ctx context.Context, name, path, format string) error {
	if name == "" {
		return fmt.Errorf("automation document: name is required")
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("automation document: reading %s: %w", path, err)
	}

	client, err := r.getSSMClient(ctx)
	if err != nil {
		return fmt.Errorf("automation document: getting client: %w", err)
	}

	if err := r.DeleteDocument(ctx, name); err != nil {
		return err
	}

	r.logger.Info("creating automation document", "document", name, "file", path)
	out, err := client.CreateDocument(ctx, &ssm.CreateDocumentInput{
		Name:           aws.String(name),
		Content:        aws.String(string(content)),
		DocumentType:   ssmtypes.DocumentTypeAutomation,
		DocumentFormat: documentFormat(format, path),
	})
	if err != nil {
		return fmt.Errorf("automation document: CreateDocument failed: %w", err)
	}
	if out.DocumentDescription != nil && out.DocumentDescription.Status == ssmtypes.DocumentStatusActive {
		return nil
	}
	return r.waitDocumentActive(ctx, client, name)
}

func (r *Runner) waitDocumentActive(ctx context.Context, client SSMAPI, name string) error {
	deadline := time.Now().Add(r.documentMaxWait)
	for {
		out, err := client.DescribeDocument(ctx, &ssm.DescribeDocumentInput{Name: aws.String(name)})
		if err != nil {
			return fmt.Errorf("automation document: DescribeDocument failed: %w", err)
		}
		var status ssmtypes.DocumentStatus
		if out.Document != nil {
			status = out.Document.Status
		}
		switch status {
		case ssmtypes.DocumentStatusActive:
			r.logger.Info("automation document active", "document", name)
			return nil
		case ssmtypes.DocumentStatusFailed:
			reason := ""
			if out.Document != nil {
				reason = aws.ToString(out.Document.StatusInformation)
			}
			return fmt.Errorf("automation document %s failed to register: %s", name, reason)
		}

		if time.Now().Add(r.pollInterval).After(deadline) {
			return fmt.Errorf("automation document %s not active after %s (status %q)", name, r.documentMaxWait, status)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(r.pollInterval):
		}
	}
}

// DeleteDocument removes the named document. A document that does not exist
// is not an error.
func (r *Runner) DeleteDocument(ctx context.Context, name string) error {
	client, err := r.getSSMClient(ctx)
	if err != nil {
		return fmt.Errorf("automation document: getting client: %w", err)
	}
	_, err = client.DeleteDocument(ctx, &ssm.DeleteDocumentInput{Name: aws.String(name)})
	if err != nil {
		var notFound *ssmtypes.InvalidDocument
		if errors.As(err, &notFound) {
			return nil
		}
		return fmt.Errorf("automation document: DeleteDocument failed: %w", err)
	}
	r.logger.Info("deleted automation document", "document", name)
	return nil
}
