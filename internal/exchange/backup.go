package exchange

import (
	"io"
	"time"

	"github.com/roach88/previa/internal/domain"
	"github.com/roach88/previa/internal/workorder"
)

// AppName identifies backups written by this program.
const AppName = "previa"

// BackupDocument wraps a full state. ImportState accepts it back.
type BackupDocument struct {
	App        string           `json:"app"`
	ExportedAt time.Time        `json:"exportedAt"`
	State      *domain.AppState `json:"state"`
}

// Backup builds the backup document of s.
func Backup(s *domain.AppState, now time.Time) BackupDocument {
	return BackupDocument{App: AppName, ExportedAt: now.UTC(), State: s}
}

// WriteBackup writes the backup document of s as indented JSON.
func WriteBackup(w io.Writer, s *domain.AppState, now time.Time) error {
	return writeJSON(w, Backup(s, now))
}

// BackupFilename names a backup taken at now.
func BackupFilename(now time.Time) string {
	return "previa_backup_" + now.Format("2006-01-02") + ".json"
}

// Dossier collects everything recorded against one job.
type Dossier struct {
	Job       domain.Job            `json:"job"`
	Payments  []domain.JobPayment   `json:"payments"`
	Lines     []domain.JobLine      `json:"lines"`
	Purchases []domain.PurchaseLine `json:"purchases"`
}

// JobDossier gathers the job, its payments and lines, and the purchases
// tagged with its job code.
func JobDossier(s *domain.AppState, jobID string) (Dossier, error) {
	i := s.FindJob(jobID)
	if i < 0 {
		return Dossier{}, domain.NotFound("job", jobID)
	}
	d := Dossier{
		Job:       s.Jobs[i],
		Payments:  []domain.JobPayment{},
		Lines:     []domain.JobLine{},
		Purchases: []domain.PurchaseLine{},
	}
	for _, p := range s.JobPayments {
		if p.JobID == jobID {
			d.Payments = append(d.Payments, p)
		}
	}
	for _, l := range s.JobLines {
		if l.JobID == jobID {
			d.Lines = append(d.Lines, l)
		}
	}
	d.Purchases = append(d.Purchases, workorder.PurchasesForJob(s, d.Job.JobCode)...)
	return d, nil
}

// WriteJobDossier writes d as indented JSON.
func WriteJobDossier(w io.Writer, d Dossier) error {
	return writeJSON(w, d)
}

// DossierFilename names the dossier of job, by job code or else by id.
func DossierFilename(job domain.Job) string {
	name := job.JobCode
	if name == "" {
		name = job.ID
	}
	return "fascicolo_" + name + ".json"
}
