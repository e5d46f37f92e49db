package session

import "testing"

func TestRegisterInput_Validate(t *testing.T) {
	tests := []struct {
		name    string
		in      RegisterInput
		wantErr bool
	}{
		{"valid", RegisterInput{Email: "a@b.c", Password: "secret", FirstName: "Al", LastName: "Bo"}, false},
		{"missing email", RegisterInput{Password: "secret", FirstName: "Al", LastName: "Bo"}, true},
		{"email without at", RegisterInput{Email: "ab.c", Password: "secret", FirstName: "Al", LastName: "Bo"}, true},
		{"short password", RegisterInput{Email: "a@b.c", Password: "12345", FirstName: "Al", LastName: "Bo"}, true},
		{"short first name", RegisterInput{Email: "a@b.c", Password: "secret", FirstName: " A ", LastName: "Bo"}, true},
		{"missing last name", RegisterInput{Email: "a@b.c", Password: "secret", FirstName: "Al"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.in.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidateLogin(t *testing.T) {
	if err := ValidateLogin("ada@example.com", "secret"); err != nil {
		t.Errorf("valid login rejected: %v", err)
	}
	if err := ValidateLogin("", ""); err == nil {
		t.Error("empty login accepted")
	}
}
