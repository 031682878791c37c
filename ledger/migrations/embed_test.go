package migrations

import "testing"

func TestValidateAcceptsEmbeddedMigrations(t *testing.T) {
	if err := Validate(); err != nil {
		t.Fatalf("Validate() = %v, want nil", err)
	}
}

func TestNamesIncludesBothDirections(t *testing.T) {
	names, err := Names()
	if err != nil {
		t.Fatalf("Names(): %v", err)
	}
	if len(names) == 0 {
		t.Fatal("Names() returned no embedded files")
	}
	haveUp, haveDown := false, false
	for _, n := range names {
		if matched := migrationFilenameRegex.FindStringSubmatch(n); matched != nil {
			switch matched[3] {
			case "up":
				haveUp = true
			case "down":
				haveDown = true
			}
		}
	}
	if !haveUp || !haveDown {
		t.Errorf("Names() = %v, want at least one up and one down file", names)
	}
}

func TestChecksumIsStableAndDiffersAcrossFiles(t *testing.T) {
	names, err := Names()
	if err != nil {
		t.Fatalf("Names(): %v", err)
	}
	if len(names) < 2 {
		t.Fatal("need at least two embedded files to compare checksums")
	}
	sum1, err := Checksum(names[0])
	if err != nil {
		t.Fatalf("Checksum(%s): %v", names[0], err)
	}
	sum1Again, err := Checksum(names[0])
	if err != nil {
		t.Fatalf("Checksum(%s): %v", names[0], err)
	}
	if sum1 != sum1Again {
		t.Errorf("Checksum(%s) not stable: %s vs %s", names[0], sum1, sum1Again)
	}
	sum2, err := Checksum(names[1])
	if err != nil {
		t.Fatalf("Checksum(%s): %v", names[1], err)
	}
	if sum1 == sum2 {
		t.Errorf("Checksum collision between %s and %s", names[0], names[1])
	}
}
