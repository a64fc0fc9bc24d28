package bordereau

import (
	"fmt"
	"strings"
	"time"
)

// FormatSerial construit BDR-YYYY-MM-DD-SRV{6 premiers caractères du service}-NNNN,
// le jour étant lu dans loc.
func FormatSerial(serviceID string, dateEdition time.Time, seq int, loc *time.Location) string {
	key := []rune(serviceID)
	if len(key) > 6 {
		key = key[:6]
	}
	return fmt.Sprintf("BDR-%s-SRV%s-%04d",
		dateEdition.In(loc).Format("2006-01-02"), strings.ToUpper(string(key)), seq)
}
