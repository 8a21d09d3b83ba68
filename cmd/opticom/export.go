package main

import (
	"compress/gzip"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/spf13/viper"

	"github.com/Azure-Framework/Az-Opticom/internal/api"
)

// exportSessions writes each journal session's override events to a
// gzipped JSON file for external tooling.
func exportSessions(sessionIDs []string) error {
	if journalManager == nil || !journalManager.IsValid {
		return fmt.Errorf("journal not connected")
	}

	fmt.Println("Exporting sessions: ", sessionIDs)

	for _, sessionID := range sessionIDs {
		idInt, err := strconv.Atoi(sessionID)
		if err != nil {
			return err
		}

		txStart := time.Now()
		events, err := journalManager.ExportSession(uint(idInt))
		if err != nil {
			return fmt.Errorf("error exporting session %d: %w", idInt, err)
		}
		fmt.Println("Got", len(events), "events in", time.Since(txStart))

		data, err := json.Marshal(events)
		if err != nil {
			return fmt.Errorf("error marshalling session events: %w", err)
		}

		fileName := fmt.Sprintf("%s_session_%d.json.gz", ExtensionName, idInt)
		f, err := os.Create(fileName)
		if err != nil {
			return fmt.Errorf("error creating file: %w", err)
		}

		gzWriter := gzip.NewWriter(f)
		if _, err := gzWriter.Write(data); err != nil {
			gzWriter.Close()
			f.Close()
			return fmt.Errorf("error writing to gzip: %w", err)
		}
		gzWriter.Close()
		f.Close()

		fmt.Println("Wrote session data to", fileName)

		if viper.GetBool("api.enabled") {
			client := api.New(viper.GetString("api.serverUrl"), viper.GetString("api.apiKey"))
			meta := api.SessionMetadata{
				SessionName: fmt.Sprintf("%s_session_%d", ExtensionName, idInt),
				EventCount:  len(events),
			}
			if len(events) > 0 {
				meta.StartedAt = events[0].Time
			}
			if err := client.UploadSession(fileName, meta); err != nil {
				Logger.Error("Failed to upload session to web frontend", "error", err)
			} else {
				fmt.Println("Uploaded session data to web frontend")
			}
		}
	}

	return nil
}
