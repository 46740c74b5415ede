package main

import (
	"bytes"
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"os/exec"
	"sort"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"go.uber.org/zap"

	"slr-manager/config"
	"slr-manager/storage"
)

func main() {
	logging, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("can't initialize zap logger: %v", err)
	}
	defer logging.Sync()

	logging.Info("Starting backup run")

	cfg, err := config.LoadBackup()
	if err != nil {
		logging.Fatal("Config load error", zap.Error(err))
	}

	ctx := context.Background()
	s3Client, err := storage.NewS3Client(ctx, cfg.Endpoint, cfg.Region, cfg.AccessKey, cfg.SecretKey)
	if err != nil {
		logging.Fatal("S3 client creation failed", zap.Error(err))
	}

	// Review- und Search-Datenbank werden getrennt gesichert und rotiert.
	failed := 0
	for _, db := range cfg.Databases {
		if err := backupDatabase(ctx, s3Client, cfg, db, logging); err != nil {
			logging.Error("Backup failed", zap.String("database", db), zap.Error(err))
			failed++
		}
	}
	if failed > 0 {
		logging.Fatal("Backup run finished with errors", zap.Int("failed", failed))
	}
	logging.Info("Backup run completed", zap.Int("databases", len(cfg.Databases)))
}

func backupDatabase(ctx context.Context, client *s3.Client, cfg *config.BackupConfig, db string, logging *zap.Logger) error {
	dump, err := createDump(cfg, db)
	if err != nil {
		return fmt.Errorf("pg_dump: %w", err)
	}

	prefix := fmt.Sprintf("backups/%s/", db)
	key := prefix + fmt.Sprintf("backup-%s.sql.gz", time.Now().UTC().Format("2006-01-02T15-04-05Z"))
	_, err = client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(cfg.Bucket),
		Key:    aws.String(key),
		Body:   bytes.NewReader(dump),
	})
	if err != nil {
		return fmt.Errorf("upload %s: %w", key, err)
	}
	logging.Info("Backup uploaded", zap.String("database", db), zap.String("key", key), zap.Int("bytes", len(dump)))

	return rotateBackups(ctx, client, cfg, prefix, logging)
}

func createDump(cfg *config.BackupConfig, db string) ([]byte, error) {
	cmd := exec.Command("pg_dump",
		"-h", cfg.PGHost,
		"-U", cfg.PGUser,
		"-d", db,
		"-w", // Passwort kommt über PGPASSWORD
	)
	cmd.Env = append(os.Environ(), fmt.Sprintf("PGPASSWORD=%s", cfg.PGPass))

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, err
	}
	if err := cmd.Start(); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	gzipWriter := gzip.NewWriter(&buf)
	if _, err := io.Copy(gzipWriter, stdout); err != nil {
		return nil, err
	}
	if err := gzipWriter.Close(); err != nil {
		return nil, err
	}
	if err := cmd.Wait(); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

func rotateBackups(ctx context.Context, client *s3.Client, cfg *config.BackupConfig, prefix string, logging *zap.Logger) error {
	output, err := client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
		Bucket: aws.String(cfg.Bucket),
		Prefix: aws.String(prefix),
	})
	if err != nil {
		return err
	}

	for _, obj := range expiredBackups(output.Contents, cfg.KeepBackups) {
		logging.Info("Deleting old backup", zap.String("key", aws.ToString(obj.Key)))
		_, err := client.DeleteObject(ctx, &s3.DeleteObjectInput{
			Bucket: aws.String(cfg.Bucket),
			Key:    obj.Key,
		})
		if err != nil {
			logging.Warn("Deleting old backup failed", zap.String("key", aws.ToString(obj.Key)), zap.Error(err))
		}
	}
	return nil
}

// expiredBackups liefert alle Objekte außer den keep neuesten.
func expiredBackups(objects []types.Object, keep int) []types.Object {
	if len(objects) <= keep {
		return nil
	}
	sorted := append([]types.Object(nil), objects...)
	sort.Slice(sorted, func(i, j int) bool {
		return aws.ToTime(sorted[i].LastModified).After(aws.ToTime(sorted[j].LastModified))
	})
	return sorted[keep:]
}
